package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pulsepoint/nextcloud/internal/ignore"
	"github.com/pulsepoint/nextcloud/pkg/logger"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/pulsepoint/nextcloud/pkg/nextcloud"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLs,
}

var getCmd = &cobra.Command{
	Use:   "get <remote> [local]",
	Short: "Download a file; without local path or with - to stdout",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runGet,
}

var putCmd = &cobra.Command{
	Use:   "put <local>... <remote>",
	Short: "Upload files; with several sources the remote path is a folder",
	Long: `Upload one or more local files. A single source is stored at the remote
path, or inside it when the remote path is an existing folder. Several sources
are uploaded concurrently into the remote folder. Use - to upload stdin.

With -r folders are uploaded with their content. Entries matched by the
folder's .ncignore file or by --exclude patterns are skipped.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPut,
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>...",
	Short: "Create folders",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMkdir,
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>...",
	Short: "Remove files or folders with their content",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRm,
}

var mvCmd = &cobra.Command{
	Use:   "mv <from> <to>",
	Short: "Move a file or folder; an existing destination is not overwritten",
	Args:  cobra.ExactArgs(2),
	RunE:  runMv,
}

var cpCmd = &cobra.Command{
	Use:   "cp <from> <to>",
	Short: "Copy a file or folder; an existing destination is not overwritten",
	Args:  cobra.ExactArgs(2),
	RunE:  runCp,
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show the properties of a file or folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

func init() {
	lsCmd.Flags().BoolP("long", "l", false, "show type, size and modification time")
	mkdirCmd.Flags().BoolP("parents", "p", false, "create missing parent folders")
	putCmd.Flags().IntP("jobs", "j", 4, "number of concurrent uploads")
	putCmd.Flags().BoolP("recursive", "r", false, "upload folders with their content")
	putCmd.Flags().StringSlice("exclude", nil, "ignore pattern for recursive uploads (repeatable)")
	rmCmd.Flags().IntP("jobs", "j", 4, "number of concurrent removals")
}

func runLs(cmd *cobra.Command, args []string) error {
	dir := "/"
	if len(args) == 1 {
		dir = args[0]
	}
	long, _ := cmd.Flags().GetBool("long")

	nc, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if !long {
		names, err := nc.GetFiles(ctx, dir)
		if err != nil {
			return err
		}
		sort.Strings(names)
		return render(cmd, names, func(w *tabwriter.Writer) {
			for _, n := range names {
				fmt.Fprintln(w, n)
			}
		})
	}

	details, err := nc.GetFolderFileDetails(ctx, dir)
	if err != nil {
		return err
	}
	return render(cmd, details, func(w *tabwriter.Writer) {
		writeRow(w, "NAME", "TYPE", "SIZE", "MODIFIED")
		for _, d := range details {
			name := d.Name
			if d.IsDirectory {
				name += "/"
			}
			writeRow(w, name, d.Type, size(d.Size), when(d.LastModified))
		}
	})
}

func runGet(cmd *cobra.Command, args []string) error {
	remote := args[0]
	local := "-"
	if len(args) == 2 {
		local = args[1]
	}

	nc, err := newClient()
	if err != nil {
		return err
	}

	rs, err := nc.GetReadStream(cmd.Context(), remote)
	if err != nil {
		return err
	}
	defer rs.Close()

	if local == "-" {
		_, err := io.Copy(cmd.OutOrStdout(), rs)
		return err
	}

	if info, err := os.Stat(local); err == nil && info.IsDir() {
		local = filepath.Join(local, path.Base(remote))
	}
	f, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", local, err)
	}
	n, err := io.Copy(f, rs)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(local)
		return fmt.Errorf("failed to download %s: %w", remote, err)
	}

	done(cmd, "Downloaded %s to %s (%s)", remote, local, sizeOf(n))
	return nil
}

func sizeOf(n int64) string {
	return size(&n)
}

func runPut(cmd *cobra.Command, args []string) error {
	sources := args[:len(args)-1]
	target := args[len(args)-1]
	jobs, _ := cmd.Flags().GetInt("jobs")
	recursive, _ := cmd.Flags().GetBool("recursive")
	excludes, _ := cmd.Flags().GetStringSlice("exclude")

	nc, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	intoFolder := len(sources) > 1 || strings.HasSuffix(target, "/")
	if !intoFolder {
		intoFolder = isFolder(ctx, nc, target)
	}

	destination := func(src string) string {
		if !intoFolder {
			return target
		}
		return path.Join(target, filepath.Base(src))
	}

	var uploads []upload
	for _, src := range sources {
		if src == "-" {
			uploads = append(uploads, upload{src: src, dst: destination(src)})
			continue
		}
		info, err := os.Stat(src)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			uploads = append(uploads, upload{src: src, dst: destination(src)})
			continue
		}
		if !recursive {
			return fmt.Errorf("%s is a directory (use -r)", src)
		}
		files, err := prepareTree(ctx, nc, src, destination(src), excludes)
		if err != nil {
			return err
		}
		uploads = append(uploads, files...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, u := range uploads {
		u := u
		g.Go(func() error {
			if u.src == "-" {
				return nc.PipeStream(gctx, u.dst, cmd.InOrStdin())
			}

			f, err := os.Open(u.src)
			if err != nil {
				return err
			}
			defer f.Close()

			if err := nc.PipeStream(gctx, u.dst, f); err != nil {
				return fmt.Errorf("upload %s: %w", u.src, err)
			}
			logger.Get().Debug("Uploaded file", zap.String("source", u.src), zap.String("destination", u.dst))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	done(cmd, "Uploaded %d file(s) to %s", len(uploads), target)
	return nil
}

type upload struct {
	src string
	dst string
}

// prepareTree creates the folders of the local tree root below target and
// returns the files to upload. Entries matched by the tree's .ncignore or
// by excludes are skipped.
func prepareTree(ctx context.Context, nc *nextcloud.Client, root, target string, excludes []string) ([]upload, error) {
	matcher := ignore.NewMatcher()
	if err := matcher.LoadFile(filepath.Join(root, ignore.FileName)); err != nil {
		return nil, err
	}
	matcher.AddPatterns(excludes)

	if err := nc.CreateFolderHierarchy(ctx, target); err != nil {
		return nil, err
	}

	var files []upload
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return err
		}
		if matcher.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		dst := path.Join(target, filepath.ToSlash(rel))
		switch {
		case d.IsDir():
			return nc.TouchFolder(ctx, dst)
		case d.Type().IsRegular():
			files = append(files, upload{src: p, dst: dst})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Debug("Prepared tree upload",
		zap.String("root", root),
		zap.String("target", target),
		zap.Int("files", len(files)))
	return files, nil
}

// isFolder reports whether p names an existing folder
func isFolder(ctx context.Context, nc *nextcloud.Client, p string) bool {
	p = path.Clean("/" + p)
	if p == "/" {
		return true
	}
	entries, err := nc.GetFolderFileDetails(ctx, path.Dir(p))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Name == path.Base(p) {
			return e.IsDirectory
		}
	}
	return false
}

func runMkdir(cmd *cobra.Command, args []string) error {
	parents, _ := cmd.Flags().GetBool("parents")

	nc, err := newClient()
	if err != nil {
		return err
	}

	for _, p := range args {
		if parents {
			err = nc.CreateFolderHierarchy(cmd.Context(), p)
		} else {
			err = nc.TouchFolder(cmd.Context(), p)
		}
		if err != nil {
			return err
		}
	}
	done(cmd, "Created %d folder(s)", len(args))
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	jobs, _ := cmd.Flags().GetInt("jobs")

	nc, err := newClient()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(jobs)
	for _, p := range args {
		p := p
		g.Go(func() error {
			if err := nc.Remove(gctx, p); err != nil {
				return fmt.Errorf("remove %s: %w", p, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	done(cmd, "Removed %d item(s)", len(args))
	return nil
}

func runMv(cmd *cobra.Command, args []string) error {
	nc, err := newClient()
	if err != nil {
		return err
	}
	if err := nc.Move(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	done(cmd, "Moved %s to %s", args[0], args[1])
	return nil
}

func runCp(cmd *cobra.Command, args []string) error {
	nc, err := newClient()
	if err != nil {
		return err
	}
	if err := nc.Copy(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	done(cmd, "Copied %s to %s", args[0], args[1])
	return nil
}

// statProps are the properties shown by stat
var statProps = []models.FolderDetailProperty{
	models.DAVProperty("getlastmodified", false),
	models.DAVProperty("getcontenttype", false),
	models.DAVProperty("getetag", false),
	models.OwnCloudProperty("fileid", true),
	models.OwnCloudProperty("size", true),
	models.OwnCloudProperty("permissions", false),
	models.OwnCloudProperty("owner-id", false),
	models.OwnCloudProperty("owner-display-name", false),
	models.OwnCloudProperty("favorite", true),
	models.NextCloudProperty("has-preview", true),
}

func runStat(cmd *cobra.Command, args []string) error {
	nc, err := newClient()
	if err != nil {
		return err
	}

	props, err := nc.GetFolderProperties(cmd.Context(), args[0], statProps...)
	if err != nil {
		return err
	}

	return render(cmd, props, func(w *tabwriter.Writer) {
		writeRow(w, "path", args[0])
		for _, p := range statProps {
			v, ok := props[p.Element]
			if !ok {
				continue
			}
			if p.Element == "size" {
				if n, isInt := v.(int64); isInt {
					v = sizeOf(n)
				}
			}
			writeRow(w, p.Element, fmt.Sprint(v))
		}
	})
}
