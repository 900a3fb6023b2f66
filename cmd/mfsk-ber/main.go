/* Bit error rate simulation for the MFSK demodulator */
package main

import (
	mfsk "github.com/doismellburning/mfsk/src"
)

func main() {
	mfsk.BerMain()
}
