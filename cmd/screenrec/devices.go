package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"github.com/xaionaro-go/screenrec"
	"github.com/xaionaro-go/screenrec/types"
	"gopkg.in/yaml.v3"
)

func runDevices(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("devices", pflag.ExitOnError)
	asYAML := fs.Bool("yaml", false, "print as YAML")
	codecName := fs.String("codec", "", "also print the preferred encoder for this codec (h264, hevc or av1)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	audioInputs, err := screenrec.EnumerateAudioInputDevices(ctx)
	if err != nil {
		return err
	}
	encoders, err := screenrec.EnumerateVideoEncoders(ctx)
	if err != nil {
		return err
	}

	var preferred *types.VideoEncoder
	if *codecName != "" {
		var codec types.VideoCodec
		if err := codec.UnmarshalText([]byte(*codecName)); err != nil {
			return err
		}
		enc, err := screenrec.GetPreferredVideoEncoderByType(ctx, codec)
		if err != nil {
			return err
		}
		preferred = &enc
	}

	if *asYAML {
		out := struct {
			AudioInputs []types.AudioInputDevice `yaml:"audio_inputs"`
			Encoders    []types.VideoEncoder     `yaml:"video_encoders"`
			Preferred   *types.VideoEncoder      `yaml:"preferred,omitempty"`
		}{
			AudioInputs: audioInputs,
			Encoders:    encoders,
			Preferred:   preferred,
		}
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(out)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AUDIO INPUT\tID\tDEFAULT")
	for _, dev := range audioInputs {
		fmt.Fprintf(w, "%s\t%s\t%v\n", dev.Name, dev.ID, dev.IsDefault)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "VIDEO ENCODER\tCODEC\tACCELERATION")
	for _, enc := range encoders {
		fmt.Fprintf(w, "%s\t%s\t%s\n", enc.Name, enc.Codec, enc.Acceleration)
	}
	if preferred != nil {
		fmt.Fprintf(w, "\npreferred: %s\n", preferred.Name)
	}
	return w.Flush()
}
