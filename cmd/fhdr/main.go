package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tchajed/goose/machine/disk"
	"github.com/urfave/cli/v2"

	"github.com/mit-pdos/go-filehdr/blkdev"
	"github.com/mit-pdos/go-filehdr/common"
	"github.com/mit-pdos/go-filehdr/filesys"
	"github.com/mit-pdos/go-filehdr/util"
)

var (
	Version = "development"
)

func openDev(c *cli.Context) (*blkdev.Dev, error) {
	path := c.String("image")
	if path == "" {
		return nil, errors.New("no disk image given (--image or FHDR_IMAGE)")
	}
	return blkdev.OpenImage(path, c.Uint64("blocks"))
}

// withFs mounts the image for the length of one command
func withFs(c *cli.Context, fn func(fs *filesys.FileSys) error) error {
	dev, err := openDev(c)
	if err != nil {
		return err
	}
	defer dev.Close()
	fs, err := filesys.Mount(dev)
	if err != nil {
		return errors.Wrapf(err, "mount %s", c.String("image"))
	}
	return fn(fs)
}

func inumArg(c *cli.Context) (common.Inum, error) {
	if c.NArg() != 1 {
		return 0, errors.New("expected one inode number")
	}
	inum, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bad inode number %q", c.Args().First())
	}
	return inum, nil
}

// readAll returns the whole contents of f
func readAll(f *filesys.File) ([]byte, error) {
	data := make([]byte, f.Length())
	n, err := f.ReadAt(data, 0)
	if err == io.EOF && n == len(data) {
		err = nil
	}
	return data[:n], err
}

func main() {
	app := &cli.App{
		Name:    "fhdr",
		Usage:   "inspect and manipulate a file-header disk image",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "path to the disk image",
				EnvVars: []string{"FHDR_IMAGE"},
			},
			&cli.Uint64Flag{
				Name:  "blocks",
				Usage: "image size in blocks (needed when creating an image)",
			},
			&cli.Uint64Flag{
				Name:  "debug",
				Usage: "debug print level",
			},
		},
		Before: func(c *cli.Context) error {
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			util.SetDebug(c.Uint64("debug"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "format",
				Usage: "write an empty file system to the image",
				Action: func(c *cli.Context) error {
					dev, err := openDev(c)
					if err != nil {
						return err
					}
					defer dev.Close()
					fs, err := filesys.Format(dev)
					if err != nil {
						return err
					}
					st := fs.Statfs()
					fmt.Printf("formatted %d blocks, %s free\n",
						st.Size, humanize.IBytes(st.Free*disk.BlockSize))
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "create a zero-filled file",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "size", Usage: "file size in bytes", Required: true},
				},
				Action: func(c *cli.Context) error {
					return withFs(c, func(fs *filesys.FileSys) error {
						inum, err := fs.Create(c.Uint64("size"))
						if err != nil {
							return err
						}
						fmt.Println(inum)
						return nil
					})
				},
			},
			{
				Name:      "put",
				Usage:     "copy a host file into a new file",
				ArgsUsage: "HOSTFILE",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("expected a host file")
					}
					data, err := ioutil.ReadFile(c.Args().First())
					if err != nil {
						return err
					}
					return withFs(c, func(fs *filesys.FileSys) error {
						inum, err := fs.Create(uint64(len(data)))
						if err != nil {
							return err
						}
						f, err := fs.Open(inum)
						if err != nil {
							return err
						}
						if _, err := f.WriteAt(data, 0); err != nil {
							return err
						}
						fmt.Println(inum)
						return nil
					})
				},
			},
			{
				Name:      "cat",
				Usage:     "write a file's contents to stdout",
				ArgsUsage: "INUM",
				Action: func(c *cli.Context) error {
					inum, err := inumArg(c)
					if err != nil {
						return err
					}
					return withFs(c, func(fs *filesys.FileSys) error {
						f, err := fs.Open(inum)
						if err != nil {
							return err
						}
						data, err := readAll(f)
						if err != nil {
							return err
						}
						_, err = os.Stdout.Write(data)
						return err
					})
				},
			},
			{
				Name:      "dump",
				Usage:     "print a file's header and contents",
				ArgsUsage: "INUM",
				Action: func(c *cli.Context) error {
					inum, err := inumArg(c)
					if err != nil {
						return err
					}
					return withFs(c, func(fs *filesys.FileSys) error {
						return fs.Dump(inum, os.Stdout)
					})
				},
			},
			{
				Name:      "rm",
				Usage:     "remove a file",
				ArgsUsage: "INUM",
				Action: func(c *cli.Context) error {
					inum, err := inumArg(c)
					if err != nil {
						return err
					}
					return withFs(c, func(fs *filesys.FileSys) error {
						return fs.Remove(inum)
					})
				},
			},
			{
				Name:  "stat",
				Usage: "print disk usage",
				Action: func(c *cli.Context) error {
					return withFs(c, func(fs *filesys.FileSys) error {
						st := fs.Statfs()
						fmt.Printf("blocks:        %d (%s)\n", st.Size,
							humanize.IBytes(st.Size*disk.BlockSize))
						fmt.Printf("free:          %d (%s)\n", st.Free,
							humanize.IBytes(st.Free*disk.BlockSize))
						fmt.Printf("first file:    %d\n", st.DataStart)
						fmt.Printf("max file size: %s\n",
							humanize.IBytes(common.MaxFileSize3))
						return nil
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
