// Command fat8info prints, for each image in a D88 container, the detected
// FAT8 variant with its geometry, the structural-error count, and (with
// -l) the directory listing, without extracting anything — the
// introspection analogue of the extraction CLI (§6, SUPPLEMENTED
// FEATURES). The D88 header fields (disk name, media kind, write-protect
// flag, image size) are not printed.
package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/f8tools/fat8d88"
)

type rootParameters struct {
	Positional struct {
		Filepath string `positional-arg-name:"filepath" description:"D88 file-path to inspect"`
	} `positional-args:"yes" required:"1"`

	ShowEntries bool `short:"l" long:"list" description:"List decoded directory entries"`
}

var rootArguments = new(rootParameters)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	f, err := os.Open(rootArguments.Positional.Filepath)
	log.PanicIf(err)

	defer f.Close()

	results, err := fat8d88.ProcessStream(f)
	log.PanicIf(err)

	for _, result := range results {
		printImage(result)
	}
}

func printImage(result *fat8d88.ImageResult) {
	fmt.Printf("## Disk %d\n\n", result.ImageIndex+1)

	if result.Variant == nil {
		fmt.Printf("variant: unrecognized (%s)\n\n", result.ErrorLog.Error())
		return
	}

	v := result.Variant

	fmt.Printf("variant:            %s\n", v.Name)
	fmt.Printf("family:             %s\n", v.Family)
	fmt.Printf("geometry:           %d tracks, %d side(s), %d sectors/track, %d bytes/sector\n", v.Tracks, v.Sides, v.SectorsPerTrack, v.SectorSize)
	fmt.Printf("system track:       track %d, head %d\n", v.SystemTrack.Track, v.SystemTrack.Head)
	fmt.Printf("structural errors:  %d\n", result.ErrorLog.Count())
	fmt.Printf("files decoded:      %d\n", len(result.Files))
	fmt.Printf("\n")

	if rootArguments.ShowEntries {
		for _, nf := range result.Files {
			f := nf.File

			flagLabels := ""
			for flag := range f.Flags {
				flagLabels += " " + flag.String()
			}

			fmt.Printf("%-32s %8s  %-7s %s\n", nf.Name, humanize.Comma(int64(len(f.Body))), f.Classification, flagLabels)
		}
		fmt.Printf("\n")
	}

	for _, ev := range result.ErrorLog.Errors() {
		fmt.Printf("  ! %s\n", ev)
	}
}
