package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/jrdbload/internal/download"
)

func newDownloadCommand(a *app) *cobra.Command {
	var (
		page string
		ext  string
		dir  string
	)

	cmd := &cobra.Command{
		Use:   "download [NAME...]",
		Short: "Download archives from the JRDB member area",
		Long: `Download fetches data archives with the JRDB_USERNAME / JRDB_PASSWORD
credentials. Either name files directly, or pass --page to fetch every link
with the given extension from a listing page. Archives are saved as-is.`,
		Example: `  jrdbload download SED220110.zip KYI220110.lzh
  jrdbload download --page http://www.jrdb.com/member/datazip/Sed/index.html --ext .zip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Download.OutputDir
			}
			return a.runDownload(cmd.Context(), cmd.OutOrStdout(), args, page, ext, dir)
		},
	}

	cmd.Flags().StringVar(&page, "page", "", "listing page to scrape for links")
	cmd.Flags().StringVar(&ext, "ext", ".zip", "link extension to download with --page")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "output directory (overrides DOWNLOAD_DIR)")

	return cmd
}

func (a *app) runDownload(ctx context.Context, w io.Writer, names []string, page, ext, dir string) error {
	if len(names) == 0 && page == "" {
		return errors.New("name at least one file or pass --page")
	}
	if err := a.cfg.Download.RequireCredentials(); err != nil {
		return err
	}

	client, err := download.New(download.Config{
		BaseURL:           a.cfg.Download.BaseURL,
		Username:          a.cfg.Download.Username,
		Password:          a.cfg.Download.Password,
		RequestsPerSecond: a.cfg.Download.RequestsPerSecond,
		Timeout:           a.cfg.Download.Timeout,
	}, a.logger)
	if err != nil {
		return err
	}

	var saved []string
	for _, name := range names {
		path, err := client.Download(ctx, name, dir)
		if err != nil {
			return err
		}
		saved = append(saved, path)
	}

	if page != "" {
		paths, err := client.DownloadAll(ctx, page, ext, dir)
		if err != nil {
			return err
		}
		saved = append(saved, paths...)
	}

	for _, p := range saved {
		fmt.Fprintln(w, p)
	}
	return nil
}
