/* Generate audio files of MFSK packets */
package main

import (
	mfsk "github.com/doismellburning/mfsk/src"
)

func main() {
	mfsk.GenPacketsMain()
}
