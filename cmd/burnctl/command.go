package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"burn.note/internal/client"
	"burn.note/internal/models"
)

const defaultServer = "http://localhost:8080"

type rootOptions struct {
	server  string
	timeout time.Duration
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.server, o.timeout)
}

func rootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "burnctl",
		Short:         "Create and open one-time burn.note links",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("BURN_SERVER")
	if server == "" {
		server = defaultServer
	}
	cmd.PersistentFlags().StringVarP(&opts.server, "server", "s", server, "burn.note server URL (env BURN_SERVER)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	cmd.AddCommand(createCommand(opts), openCommand(opts))
	return cmd
}

func createCommand(root *rootOptions) *cobra.Command {
	var (
		file string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create [text...]",
		Short: "Store a note or file and print its one-time link",
		Long:  "Store a note or file and print its one-time link.\nWith neither text nor --file, the note is read from stdin.",
		Example: `  burnctl create "the wifi password is hunter2"
  burnctl create --file id_ed25519 --ttl 10m
  pass show db | burnctl create`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" && len(args) > 0 {
				return errors.New("give either text or --file, not both")
			}

			content, kind, err := readContent(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}

			created, err := root.client().Create(cmd.Context(), content, kind, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), created.URL)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file to share instead of text")
	cmd.Flags().DurationVarP(&ttl, "ttl", "t", 0, "expire after this long even if unread (server default if unset)")
	return cmd
}

func openCommand(root *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "open <id|link>",
		Short: "Read a secret; it is destroyed on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := root.client().Open(cmd.Context(), client.ParseID(args[0]))
			if err != nil {
				if errors.Is(err, client.ErrGone) {
					return errors.New("this note has self-destructed: it was already viewed or has expired")
				}
				return err
			}

			if secret.Kind == models.KindText {
				_, err := io.WriteString(cmd.OutOrStdout(), secret.Content)
				return err
			}

			f, err := models.ParseDataURI(secret.Content)
			if err != nil {
				// the server already deleted it, so hand over the raw data
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: file data is not a data URI, printing raw content")
				_, werr := io.WriteString(cmd.OutOrStdout(), secret.Content)
				return werr
			}

			path := out
			if path == "" {
				path = safeName(f.Filename())
			} else if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, safeName(f.Filename()))
			}

			saved, err := saveFile(path, f.Data)
			if err != nil {
				// the secret is gone from the server; stdout is the last copy
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not save file (%v), writing it to stdout\n", err)
				_, werr := cmd.OutOrStdout().Write(f.Data)
				return werr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s, %d bytes)\n", saved, f.MIMEType, len(f.Data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "where to save a file secret (default: its original name)")
	return cmd
}

func readContent(stdin io.Reader, file string, args []string) (string, models.Kind, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", "", err
		}
		uri := &models.DataURI{
			MIMEType: detectMIME(file, data),
			Name:     filepath.Base(file),
			Data:     data,
		}
		return uri.String(), models.KindFile, nil
	case len(args) > 0:
		return strings.Join(args, " "), models.KindText, nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), models.KindText, nil
	}
}

func detectMIME(name string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		if base, _, err := mime.ParseMediaType(t); err == nil {
			return base
		}
	}
	t, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return t
}

// safeName reduces a sender-supplied name to a plain file name.
func safeName(name string) string {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(name, "\\", "/")))
	switch base {
	case "", ".", "..", string(filepath.Separator):
		return "secret-file"
	}
	return base
}

// saveFile writes data to path, or to "name (N).ext" beside it when path
// is taken. It returns the path actually written.
func saveFile(path string, data []byte) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)

	candidate := path
	for i := 1; i <= 100; i++ {
		err := writeNew(candidate, data)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
	}
	return "", fmt.Errorf("no free file name next to %s", path)
}

// writeNew refuses to clobber an existing file.
func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
