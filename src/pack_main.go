package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Show the frame that would be sent for a message.
 *
 * Description:	One line of hex per message argument, for checking
 *		another implementation against this one.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

func PackMain() {
	if code := packMain(os.Args[1:], os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}

func packMain(args []string, stdout io.Writer, stderr io.Writer) int {
	var flags = pflag.NewFlagSet("mfsk-pack", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var sync = flags.StringP("sync", "y", "abcd", "Synchronisation pattern, hex.")
	var crc32 = flags.BoolP("crc32", "3", false, "Use CRC-32 rather than CRC-16.")
	var dump = flags.BoolP("dump", "x", false, "Traditional hex dump with offsets and text.")
	var help = flags.BoolP("help", "h", false, "Display help text.")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "mfsk-pack - Print the frame for each message in hexadecimal.\n")
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Usage: mfsk-pack [options] message...\n")
		flags.PrintDefaults()
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Example:  mfsk-pack Hello\n")
		fmt.Fprintf(stderr, "          ab cd 00 05 48 65 6c 6c 6f 88 d7\n")
	}

	if err := flags.Parse(args); err != nil {
		return 1
	}

	if *help || flags.NArg() == 0 {
		flags.Usage()
		return 1
	}

	var syncBytes HexBytes
	if err := syncBytes.UnmarshalText([]byte(*sync)); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}

	if len(syncBytes) == 0 {
		fmt.Fprintf(stderr, "%s\n", ErrEmptySync)
		return 1
	}

	var pk = NewPacketizer(syncBytes, *crc32)

	for _, msg := range flags.Args() {
		var frame = pk.Pack([]byte(msg))

		if *dump {
			HexDump(stdout, frame)
		} else {
			fmt.Fprintln(stdout, HexBytesString(frame))
		}
	}

	return 0
}
