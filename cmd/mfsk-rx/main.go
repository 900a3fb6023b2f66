/* MFSK receiver and KISS TNC */
package main

import (
	mfsk "github.com/doismellburning/mfsk/src"
)

func main() {
	mfsk.RxMain()
}
