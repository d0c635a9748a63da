// Copyright 2025 the original author or authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package info implements the info subcommand, which prints header and,
// optionally, entity count information about an OSM binary file.
package info

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"m4o.io/osmio"
	"m4o.io/osmio/cmd/osmio/cli"
	"m4o.io/osmio/model"
)

var out io.Writer = os.Stdout

type extendedHeader struct {
	model.Header

	NodeCount     int64 `json:"node_count,omitempty"`
	WayCount      int64 `json:"way_count,omitempty"`
	RelationCount int64 `json:"relation_count,omitempty"`
}

var inputFormat osmio.Format

func init() {
	cli.RootCmd.AddCommand(infoCmd)

	flags := infoCmd.Flags()
	flags.BoolP("json", "j", false, "format information in JSON")
	flags.VarP(cli.NewFormatValue(osmio.FormatUnknown, &inputFormat), "format", "f",
		"input format (o5m, o5c, pbf); sniffed when omitted")
	flags.IntP("cpu", "c", int(osmio.DefaultNCpu()), "number of CPUs to use for scanning")
	flags.BoolP("extended", "e", false, "provide extended information (scans entire file)")
}

var infoCmd = &cobra.Command{
	Use:   "info [<OSM file>]",
	Short: "Print information about an OSM file",
	Long:  "Print information about an OSM file",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var (
			f   *os.File
			err error
		)

		if len(args) == 1 {
			f, err = os.Open(args[0])
			if err != nil {
				log.Fatal(err)
			}
		} else {
			f = os.Stdin
		}

		flags := cmd.Flags()

		extended, err := flags.GetBool("extended")
		if err != nil {
			log.Fatal(err)
		}

		var in io.ReadCloser = f

		if extended {
			in, err = cli.WrapInputFile(f)
			if err != nil {
				log.Fatal(err)
			}
		}

		ncpu, err := flags.GetInt("cpu")
		if err != nil {
			log.Fatal(err)
		}

		rdr, format, err := openReader(in, inputFormat, ncpu, extended)
		if err != nil {
			log.Fatal(err)
		}

		info := runInfo(rdr, extended)

		if err := in.Close(); err != nil {
			log.Fatal(err)
		}

		jsonfmt, err := flags.GetBool("json")
		if err != nil {
			log.Fatal(err)
		}

		if jsonfmt {
			renderJSON(info, extended)
		} else {
			renderTxt(format, info, extended)
		}
	},
}

// openReader resolves the format, sniffing the stream prologue when none
// was given, and starts a reader on it.
func openReader(in io.Reader, format osmio.Format, ncpu int, extended bool) (*osmio.Reader, osmio.Format, error) {
	buffered := bufio.NewReader(in)

	if format == osmio.FormatUnknown {
		prefix, err := buffered.Peek(16)
		if err != nil && err != io.EOF {
			return nil, osmio.FormatUnknown, err
		}

		format = osmio.DetectFormat(prefix)
		if format == osmio.FormatUnknown {
			return nil, format, errors.New("unable to detect input format; use --format")
		}
	}

	opts := []osmio.ParserOption{osmio.WithPoolSize(ncpu)}
	if !extended {
		opts = append(opts, osmio.WithReadTypes(model.MaskNothing))
	}

	rdr, err := osmio.NewReader(context.Background(), buffered, format, opts...)
	if err != nil {
		return nil, format, err
	}

	return rdr, format, nil
}

func runInfo(rdr *osmio.Reader, extended bool) *extendedHeader {
	header, err := rdr.Header(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	info := &extendedHeader{Header: header}

	var nc, wc, rc int64

	for {
		entities, err := rdr.Decode()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			log.Fatal(err)
		}

		for _, e := range entities {
			switch e.(type) {
			case model.Node:
				nc++
			case model.Way:
				wc++
			case model.Relation:
				rc++
			}
		}
	}

	if extended {
		info.NodeCount = nc
		info.WayCount = wc
		info.RelationCount = rc
	}

	return info
}

func renderJSON(info *extendedHeader, extended bool) {
	// marshal the smallest struct needed
	var v interface{}
	if extended {
		v = info
	} else {
		v = info.Header
	}

	b, err := json.Marshal(v)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Fprintln(out, string(b))
}

func renderTxt(format osmio.Format, info *extendedHeader, extended bool) {
	fmt.Fprintf(out, "Format: %s\n", format)
	fmt.Fprintf(out, "HasMultipleVersions: %t\n", info.HasMultipleVersions)

	if bbox, ok := info.Header.BoundingBox(); ok {
		fmt.Fprintf(out, "BoundingBox: %s\n", bbox)
	}

	fmt.Fprintf(out, "RequiredFeatures: %s\n", strings.Join(info.RequiredFeatures, ", "))
	fmt.Fprintf(out, "OptionalFeatures: %s\n", strings.Join(info.OptionalFeatures, ", "))
	fmt.Fprintf(out, "WritingProgram: %s\n", info.WritingProgram)
	fmt.Fprintf(out, "Source: %s\n", info.Source)

	if !info.OsmosisReplicationTimestamp.IsZero() {
		fmt.Fprintf(out, "OsmosisReplicationTimestamp: %s\n",
			info.OsmosisReplicationTimestamp.UTC().Format(time.RFC3339))
		fmt.Fprintf(out, "OsmosisReplicationSequenceNumber: %d\n", info.OsmosisReplicationSequenceNumber)
		fmt.Fprintf(out, "OsmosisReplicationBaseURL: %s\n", info.OsmosisReplicationBaseURL)
	}

	if timestamp := info.Header.Get("timestamp"); timestamp != "" {
		fmt.Fprintf(out, "Timestamp: %s\n", timestamp)
	}

	if extended {
		fmt.Fprintf(out, "NodeCount: %s\n", humanize.Comma(info.NodeCount))
		fmt.Fprintf(out, "WayCount: %s\n", humanize.Comma(info.WayCount))
		fmt.Fprintf(out, "RelationCount: %s\n", humanize.Comma(info.RelationCount))
	}
}
