/* Show the frame sent for a message */
package main

import (
	mfsk "github.com/doismellburning/mfsk/src"
)

func main() {
	mfsk.PackMain()
}
