package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Save received packets to a log file.
 *
 * Description:	Rather than saving the raw, sometimes rather cryptic and
 *		unreadable, format, write separated properties into
 *		CSV format for easy reading and later processing.
 *
 *		There are two alternatives here.
 *
 *		Daily names	- The path is a directory.  A new file,
 *				  named for the UTC date, is started
 *				  each day.
 *
 *		Single file	- The path is a file name.  Use
 *				  logrotate or similar to keep the size
 *				  under control.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

var packetLogHeader = []string{"chan", "utime", "isotime", "sample", "snr_db", "length", "hex", "text"}

type PacketLogConfig struct {
	Path       string `yaml:"path"` // Empty to disable.
	DailyNames bool   `yaml:"daily_names"`
}

type PacketLog struct {
	dailyNames bool
	path       string // Directory for daily names, otherwise the file.
	fp         *os.File
	openFname  string
	logger     *log.Logger
}

/*------------------------------------------------------------------
 *
 * Function:	NewPacketLog
 *
 * Inputs:	cfg.DailyNames	- True if daily names should be generated.
 *				  In this case path is a directory.
 *				  When false, path would be the file name.
 *
 *		cfg.Path	- Log file name or just directory.
 *				  Use "." for current directory.
 *
 * Description:	For daily names, a missing directory is created.  Its
 *		parent must exist; we don't "mkdir -p".
 *
 *------------------------------------------------------------------*/

func NewPacketLog(cfg PacketLogConfig, logger *log.Logger) (*PacketLog, error) {
	var pl = &PacketLog{ //nolint:exhaustruct
		dailyNames: cfg.DailyNames,
		path:       cfg.Path,
		logger:     logger,
	}

	if cfg.Path == "" {
		return nil, errors.New("packet log path is empty")
	}

	if !cfg.DailyNames {
		logger.Info("Log file", "path", cfg.Path)
		return pl, nil
	}

	var stat, statErr = os.Stat(cfg.Path)

	switch {
	case statErr == nil && stat.IsDir():
	case statErr == nil:
		return nil, fmt.Errorf("log file location %q is not a directory", cfg.Path)
	default:
		if err := os.Mkdir(cfg.Path, 0o755); err != nil { //nolint:gosec
			return nil, fmt.Errorf("failed to create log file location %q: %w", cfg.Path, err)
		}

		logger.Info("Log file location has been created.", "path", cfg.Path)
	}

	return pl, nil
}

/*------------------------------------------------------------------
 *
 * Function:	Write
 *
 * Purpose:	Save information about one packet.
 *
 * Inputs:	channel	- Radio channel where heard.
 *
 *		p	- The packet.  Its Timestamp is used for the
 *			  time columns and the daily file name.
 *
 *------------------------------------------------------------------*/

func (pl *PacketLog) Write(channel int, p Packet) error {
	var now = p.Timestamp.UTC()

	var fullPath = pl.path

	if pl.dailyNames {
		// Generate the file name from current date, UTC.
		var fname = now.Format("2006-01-02.log")

		// Close current file if name has changed.
		if pl.fp != nil && fname != pl.openFname {
			pl.Close()
		}

		fullPath = filepath.Join(pl.path, fname)
		pl.openFname = fname
	}

	if pl.fp == nil {
		// See if file already exists and not empty.
		// A header suitable for importing into a spreadsheet
		// is written only if this will be the first line.

		var stat, statErr = os.Stat(fullPath)
		var alreadyThere = statErr == nil && stat.Size() > 0

		pl.logger.Info("Opening log file", "path", fullPath)

		var f, openErr = os.OpenFile(fullPath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644) //nolint:gosec
		if openErr != nil {
			pl.openFname = ""
			return fmt.Errorf("can't open log file %q for write: %w", fullPath, openErr)
		}

		pl.fp = f

		if !alreadyThere {
			var w = csv.NewWriter(pl.fp)
			_ = w.Write(packetLogHeader)
			w.Flush()
		}
	}

	var text = ""
	if utf8.Valid(p.Payload) {
		text = string(p.Payload)
	}

	var snr = ""
	if isFinite(p.SNR) {
		snr = strconv.FormatFloat(p.SNR, 'f', 1, 64)
	}

	var w = csv.NewWriter(pl.fp)
	_ = w.Write([]string{
		strconv.Itoa(channel),
		strconv.FormatInt(now.Unix(), 10),
		now.Format("2006-01-02T15:04:05Z"),
		strconv.FormatInt(p.Sample, 10),
		snr,
		strconv.Itoa(len(p.Payload)),
		hex.EncodeToString(p.Payload),
		text,
	})
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("CSV write error: %w", err)
	}

	return nil
}

// Close closes any open log file.  Called when exiting or when the date changes.
func (pl *PacketLog) Close() {
	if pl.fp == nil {
		return
	}

	pl.logger.Info("Closing log file", "path", pl.fp.Name())

	_ = pl.fp.Close()
	pl.fp = nil
	pl.openFname = ""
}
