package mfsk

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackMain(t *testing.T) {
	var stdout, stderr bytes.Buffer

	require.Equal(t, 0, packMain([]string{"Hello", "Hi"}, &stdout, &stderr))
	assert.Equal(t,
		"ab cd 00 05 48 65 6c 6c 6f 88 d7\n"+
			"ab cd 00 02 48 69 "+HexBytesString(Pack([]byte("Hi"), false)[6:])+"\n",
		stdout.String())

	stdout.Reset()
	require.Equal(t, 0, packMain([]string{"-3", "Hello"}, &stdout, &stderr))
	assert.Equal(t, "ab cd 80 05 48 65 6c 6c 6f 74 44 da a0\n", stdout.String())

	stdout.Reset()
	require.Equal(t, 0, packMain([]string{"-y", "2dd4", "-x", "A"}, &stdout, &stderr))
	assert.True(t, strings.HasPrefix(stdout.String(), "  000:  2d d4 00 01 41"), stdout.String())
}

func TestPackMain_Errors(t *testing.T) {
	var stdout, stderr bytes.Buffer

	assert.Equal(t, 1, packMain(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage: mfsk-pack")

	assert.Equal(t, 1, packMain([]string{"-y", "zz", "x"}, &stdout, &stderr))
	assert.Equal(t, 1, packMain([]string{"-y", "", "x"}, &stdout, &stderr))
	assert.Equal(t, 1, packMain([]string{"--bogus"}, &stdout, &stderr))
	assert.Empty(t, stdout.String())
}

func genWav(t *testing.T, args ...string) string {
	t.Helper()

	var wavName = filepath.Join(t.TempDir(), "test.wav")
	var stdout, stderr bytes.Buffer

	var code = genPacketsMain(append([]string{"-o", wavName}, args...), strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "to "+wavName)

	return wavName
}

func TestGenPacketsThenAtest(t *testing.T) {
	var wavName = genWav(t)

	var stdout, stderr bytes.Buffer

	var code = atestMain([]string{"-L", "3", "-g", "3", wavName}, &stdout, &stderr)
	require.Equal(t, 0, code, stdout.String()+stderr.String())

	var out = stdout.String()
	assert.Contains(t, out, "8000 samples per second.  16 bits per sample.  1 audio channels.")
	assert.Contains(t, out, "DECODED[3]")
	assert.Contains(t, out, "More Testing")
	assert.Contains(t, out, "3 from "+wavName)
	assert.Contains(t, out, "3 packets decoded in")
}

func TestAtest_Thresholds(t *testing.T) {
	var wavName = genWav(t, "-N", "2")

	var stdout, stderr bytes.Buffer

	assert.Equal(t, 1, atestMain([]string{"-L", "7", wavName}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "TEST FAILED: number decoded is less than 7")

	stdout.Reset()
	assert.Equal(t, 1, atestMain([]string{"-g", "5", wavName}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "TEST FAILED: number decoded is greater than 5")
}

func TestGenPackets_OptionsMatchAtest(t *testing.T) {
	var wavName = genWav(t, "-n", "8", "-f", "1200", "-G", "-3", "-y", "2dd4", "Hello", "World")

	var stdout, stderr bytes.Buffer

	// The receiver doesn't need to be told about CRC-32, the flags say so.
	var code = atestMain([]string{"-n", "8", "-f", "1200", "-G", "-y", "2dd4", "-F", "-L", "2", wavName}, &stdout, &stderr)
	require.Equal(t, 0, code, stdout.String())
	assert.Contains(t, stdout.String(), "World")
}

func TestGenPackets_Stdin(t *testing.T) {
	var wavName = filepath.Join(t.TempDir(), "stdin.wav")
	var stdout, stderr bytes.Buffer

	var code = genPacketsMain([]string{"-o", wavName, "-"}, strings.NewReader("first\r\n\nsecond\n"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "Wrote 2 packets")

	stdout.Reset()
	require.Equal(t, 0, atestMain([]string{"-L", "2", wavName}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "first")
	assert.Contains(t, stdout.String(), "second")
}

func TestGenPackets_Errors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	var none = strings.NewReader("")

	assert.Equal(t, 1, genPacketsMain(nil, none, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "-o option must be used")

	var wavName = filepath.Join(t.TempDir(), "x.wav")

	assert.Equal(t, 1, genPacketsMain([]string{"-o", wavName, "-a", "101"}, none, &stdout, &stderr))
	assert.Equal(t, 1, genPacketsMain([]string{"-o", wavName, "-N", "0"}, none, &stdout, &stderr))
	assert.Equal(t, 1, genPacketsMain([]string{"-o", wavName, "-n", "12"}, none, &stdout, &stderr))
	assert.Equal(t, 1, genPacketsMain([]string{"-o", filepath.Join(wavName, "nope", "x.wav")}, none, &stdout, &stderr))
}

func TestAtest_Errors(t *testing.T) {
	var stdout, stderr bytes.Buffer

	assert.Equal(t, 1, atestMain(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Specify .WAV file name")

	assert.Equal(t, 1, atestMain([]string{filepath.Join(t.TempDir(), "missing.wav")}, &stdout, &stderr))
	assert.Equal(t, 1, atestMain([]string{"-y", "", "x.wav"}, &stdout, &stderr))

	stdout.Reset()
	assert.Equal(t, 0, atestMain([]string{"-V"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "mfsk-atest - Version")
}

func TestRxMain_WavFile(t *testing.T) {
	var wavName = genWav(t)
	var dir = t.TempDir()

	var cfgName = filepath.Join(dir, "mfsk.yaml")
	require.NoError(t, os.WriteFile(cfgName, []byte("kiss:\n  tcp_port: 0\nmonitor:\n  hex: true\n"), 0o600))

	var logName = filepath.Join(dir, "packets.csv")

	var stdout, stderr bytes.Buffer

	var code = rxMain([]string{"-c", cfgName, "-L", logName, wavName}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "DECODED[3]")
	assert.Contains(t, stdout.String(), "  000:  54 65 73 74 69 6e 67")

	var records = readCSV(t, logName)
	require.Len(t, records, 4)
	assert.Equal(t, "Testing", records[1][7])
	assert.Equal(t, "DE VK5QI", records[2][7])
	assert.Equal(t, "More Testing", records[3][7])
}

func TestRxMain_Errors(t *testing.T) {
	var stdout, stderr bytes.Buffer

	assert.Equal(t, 1, rxMain([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")}, &stdout, &stderr))
	assert.Equal(t, 1, rxMain([]string{"-l", "a", "-L", "b"}, &stdout, &stderr))

	var cfgName = filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgName, []byte("modem:\n  tone_count: 3\n"), 0o600))
	assert.Equal(t, 1, rxMain([]string{"-c", cfgName}, &stdout, &stderr))

	// Sample rate in the file doesn't match the configuration.
	var wavName = genWav(t, "-r", "11025")
	var okCfg = filepath.Join(t.TempDir(), "ok.yaml")
	require.NoError(t, os.WriteFile(okCfg, []byte("kiss:\n  tcp_port: 0\n"), 0o600))
	assert.Equal(t, 1, rxMain([]string{"-c", okCfg, wavName}, &stdout, &stderr))

	stdout.Reset()
	assert.Equal(t, 0, rxMain([]string{"-V"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "mfsk-rx - Version")
}
