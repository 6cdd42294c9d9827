// Copyright 2026 Humberto Gesser
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/humbertogesser/Emojify"
	"github.com/humbertogesser/Emojify/web"
)

func main() {
	app := &cli.App{
		Name:    "emojify",
		Usage:   "Render images and videos as emoji mosaics",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "increase verbosity",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			imageCommand(),
			videoCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("emojify failed")
	}
}

func numRoutines() int {
	// seems reasonable
	res := runtime.NumCPU() * 2
	if res <= 0 {
		// don't know if this can happen, better safe than sorry
		res = 4
	}
	return res
}

// expandPath expands ~ and turns the path into an absolute one.
func expandPath(path string) (string, error) {
	res, expandErr := homedir.Expand(path)
	if expandErr != nil {
		return "", expandErr
	}
	return filepath.Abs(res)
}

func mosaicFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "tiles",
			EnvVars: []string{"EMOJIFY_TILES"},
			Value:   "emojis",
			Usage:   "directory containing the tile images",
		},
		&cli.IntFlag{
			Name:  "size",
			Value: 8,
			Usage: "tile size in pixels",
		},
		&cli.IntFlag{
			Name:  "zoom",
			Value: 1,
			Usage: "integer output scale factor",
		},
		&cli.IntFlag{
			Name:  "max-block",
			Value: 10,
			Usage: "largest square block (in tiles) merged into one placement",
		},
		&cli.IntFlag{
			Name:  "resize-quality",
			Value: 5,
			Usage: "resize quality between 0 (fastest) and 5 (best)",
		},
		&cli.BoolFlag{
			Name:  "jpg-png",
			Usage: "only use jpg and png tile images",
		},
	}
}

// resizerFromFlags returns the resizer selected by --resize-quality.
func resizerFromFlags(c *cli.Context) emojify.NfntResizer {
	return emojify.NewNfntResizer(emojify.GetInterP(uint(c.Int("resize-quality"))))
}

func buildPalette(c *cli.Context) (*emojify.Palette, error) {
	tileDir, pathErr := expandPath(c.String("tiles"))
	if pathErr != nil {
		return nil, pathErr
	}
	log.WithFields(log.Fields{
		"dir":  tileDir,
		"size": c.Int("size"),
	}).Info("Building palette")
	var filter emojify.SupportedImageFunc
	if c.Bool("jpg-png") {
		filter = emojify.JPGAndPNG
	}
	return emojify.BuildPalette(tileDir, c.Int("size"), resizerFromFlags(c),
		filter, numRoutines())
}

// defaultOut derives the output file next to the input, for example
// clip.mp4 becomes clip-mosaic.mp4 and photo.jpg becomes photo-mosaic.png.
func defaultOut(input, ext string) string {
	stem := strings.TrimSuffix(input, filepath.Ext(input))
	return stem + "-mosaic" + ext
}

func imageCommand() *cli.Command {
	return &cli.Command{
		Name:      "image",
		Usage:     "Render a still image as an emoji mosaic",
		ArgsUsage: "FILE",
		Flags: append(mosaicFlags(),
			&cli.StringFlag{
				Name:  "out",
				Usage: "output file (png, jpg or gif), derived from the input if empty",
			},
			&cli.IntFlag{
				Name:  "quality",
				Value: 95,
				Usage: "jpeg quality between 1 and 100",
			},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				cli.ShowCommandHelpAndExit(c, "image", 1)
			}
			input, pathErr := expandPath(c.Args().First())
			if pathErr != nil {
				return cli.Exit(pathErr, 1)
			}
			palette, paletteErr := buildPalette(c)
			if paletteErr != nil {
				return cli.Exit(paletteErr, 1)
			}
			img, decodeErr := emojify.DecodeImageFile(input)
			if decodeErr != nil {
				return cli.Exit(decodeErr, 1)
			}
			mosaic, renderErr := emojify.RenderMosaic(img, palette,
				c.Int("zoom"), c.Int("max-block"), numRoutines(), resizerFromFlags(c))
			if renderErr != nil {
				return cli.Exit(renderErr, 1)
			}
			out := c.String("out")
			if out == "" {
				out = defaultOut(input, ".png")
			}
			if saveErr := emojify.SaveImage(out, mosaic, c.Int("quality")); saveErr != nil {
				return cli.Exit(saveErr, 1)
			}
			fmt.Println("Done:", out)
			return nil
		},
	}
}

func videoCommand() *cli.Command {
	return &cli.Command{
		Name:      "video",
		Usage:     "Render a video as an emoji mosaic video",
		ArgsUsage: "FILE",
		Flags: append(mosaicFlags(),
			&cli.StringFlag{
				Name:  "out",
				Usage: "output file (mp4 or gif), derived from the input if empty",
			},
			&cli.IntFlag{
				Name:  "fps",
				Value: 10,
				Usage: "frame rate of the extracted and re-encoded video",
			},
			&cli.StringFlag{
				Name:    "ffmpeg",
				EnvVars: []string{"EMOJIFY_FFMPEG"},
				Usage:   "path of the ffmpeg binary, defaults to lookup in $PATH",
			},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				cli.ShowCommandHelpAndExit(c, "video", 1)
			}
			input, pathErr := expandPath(c.Args().First())
			if pathErr != nil {
				return cli.Exit(pathErr, 1)
			}
			palette, paletteErr := buildPalette(c)
			if paletteErr != nil {
				return cli.Exit(paletteErr, 1)
			}
			out := c.String("out")
			if out == "" {
				out = defaultOut(input, ".mp4")
			}
			progress := func(max int) emojify.ProgressFunc {
				return emojify.StdProgressFunc(os.Stdout, "Rendered frame", max, 1)
			}
			if videoErr := emojify.RenderVideo(emojify.NewFFMPEG(c.String("ffmpeg")),
				input, out, palette, c.Int("zoom"), c.Int("max-block"), c.Int("fps"),
				numRoutines(), resizerFromFlags(c), progress); videoErr != nil {
				return cli.Exit(videoErr, 1)
			}
			fmt.Println("Done:", out)
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web frontend with its processing job queue",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "TOML config file",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides the config file",
			},
			&cli.StringFlag{
				Name:    "tiles",
				EnvVars: []string{"EMOJIFY_TILES"},
				Usage:   "directory containing the tile images, overrides the config file",
			},
		},
		Action: func(c *cli.Context) error {
			cfg := web.DefaultConfig()
			if c.String("config") != "" {
				var cfgErr error
				cfg, cfgErr = web.LoadConfig(c.String("config"))
				if cfgErr != nil {
					return cli.Exit(cfgErr, 1)
				}
			}
			if c.String("addr") != "" {
				cfg.Addr = c.String("addr")
			}
			if c.String("tiles") != "" {
				cfg.TileDir = c.String("tiles")
			}
			if cfg.TileDir != "" {
				var pathErr error
				cfg.TileDir, pathErr = expandPath(cfg.TileDir)
				if pathErr != nil {
					return cli.Exit(pathErr, 1)
				}
			}
			server, serverErr := web.NewServer(cfg)
			if serverErr != nil {
				return cli.Exit(serverErr, 1)
			}
			return server.ListenAndServe()
		},
	}
}
