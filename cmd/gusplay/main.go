package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gogusplayer"
)

func main() {
	cfgPath := flag.String("c", "timidity.cfg", "Instrument configuration file")
	outFile := flag.String("o", "", "Render to this WAV file instead of the speaker")
	quality := flag.String("q", "high", "Interpolation quality (linear or high)")
	rate := flag.Int("rate", 44100, "Output sample rate in Hz")
	voices := flag.Int("voices", 32, "Maximum simultaneous voices")
	volume := flag.Int("volume", 100, "Master volume in percent")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gusplay [options] song.mid\n\nPlays a MIDI file with GUS patches.\n\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  gusplay -c /etc/timidity/freepats.cfg song.mid\n")
		fmt.Fprintf(os.Stderr, "  gusplay -q linear -o song.wav song.mid\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	midiPath := flag.Arg(0)

	opts := gogusplayer.Options{
		SampleRate:   *rate,
		MaxVoices:    *voices,
		MasterVolume: *volume,
	}
	switch *quality {
	case "linear":
		opts.Quality = gogusplayer.QualityLinear
	case "high":
		opts.Quality = gogusplayer.QualityHigh
	default:
		fmt.Fprintf(os.Stderr, "error: -q must be linear or high\n")
		os.Exit(1)
	}

	player, err := gogusplayer.NewGusPlayer(*cfgPath, "", opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer player.StopAndClose()

	if *outFile != "" {
		if err := player.RenderMidiToWav(midiPath, *outFile); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := play(player, midiPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func play(player *gogusplayer.GusPlayer, midiPath string) error {
	song, err := gogusplayer.LoadMidiFile(midiPath)
	if err != nil {
		return err
	}
	seq := gogusplayer.NewSequencer(song, player.NewMixer())

	out, err := gogusplayer.NewOtoOutput(seq, player.Options().SampleRate)
	if err != nil {
		return err
	}
	defer out.Close()

	out.Start()
	for !seq.Done() {
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}
