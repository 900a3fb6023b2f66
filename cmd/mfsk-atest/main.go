/* Decode MFSK packets from .WAV files */
package main

import (
	mfsk "github.com/doismellburning/mfsk/src"
)

func main() {
	mfsk.AtestMain()
}
