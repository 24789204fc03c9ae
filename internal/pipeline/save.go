package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/backmassage/imgshift/internal/display"
	"github.com/backmassage/imgshift/internal/naming"
	"github.com/backmassage/imgshift/internal/registry"
	"github.com/backmassage/imgshift/internal/seal"
)

// Progress is reported once per input as it finishes.
type Progress struct {
	Done   int // Inputs finished so far, including this one.
	Total  int
	Result FileResult
}

// SaveAll converts inputs to req.Format and saves them into a folder picked
// by deps.Chooser.
//
// The returned error is reserved for batch-level failures: ErrNoImages, a
// *FolderError, a chooser failure, or cancellation of ctx. Per-file failures
// (*ConvertError, *WriteError, *VerifyError) are recorded in the Outcome and
// never stop the remaining files. A dismissed chooser yields
// Outcome{Cancelled: true} and a nil error.
func SaveAll(ctx context.Context, inputs []registry.InputFile, req Request, deps Deps) (Outcome, error) {
	if len(inputs) == 0 {
		return Outcome{}, ErrNoImages
	}
	if deps.Chooser == nil {
		return Outcome{}, errors.New("no folder chooser configured")
	}
	deps = deps.withDefaults()
	log := deps.Log

	folder, err := deps.Chooser.ChooseFolder(ctx)
	if errors.Is(err, ErrCancelled) {
		log.Debug(req.Verbose, "Folder selection cancelled")
		return Outcome{Cancelled: true}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	dest := folder
	if len(inputs) > 1 {
		dest = filepath.Join(folder, naming.BatchFolderName(deps.Now()))
		if req.DryRun {
			log.Info("[DRY] Would create %s", dest)
		} else if dest, err = createBatchFolder(dest); err != nil {
			return Outcome{Destination: dest}, &FolderError{Path: dest, Err: err}
		}
	}

	out := Outcome{
		Destination: dest,
		Results:     planOutputs(inputs, dest, req, log),
		DryRun:      req.DryRun,
	}
	log.Info("Saving %d image(s) as %s (%s) to %s", len(inputs), req.Format, req.levelLabel(), dest)

	s := &saver{req: req, deps: deps, total: len(inputs)}
	s.run(ctx, out.Results)

	if err := ctx.Err(); err != nil {
		return out, err
	}

	if req.Reveal && !req.DryRun {
		target := dest
		if len(inputs) == 1 {
			target = out.Results[0].OutputPath
		}
		if err := deps.Revealer.Reveal(ctx, target); err != nil {
			log.Warn("Could not reveal %s: %v", target, err)
		} else {
			out.RevealPath = target
		}
	}

	if req.SingleFile {
		deps.Quit()
	}
	return out, nil
}

// sourceOwner marks output paths that are the inputs themselves.
const sourceOwner = "\x00source"

// planOutputs assigns every input its output path before any work starts, so
// names do not depend on worker scheduling. With Dedupe, later inputs that
// collide get "-N" suffixes; without it they overwrite, with a warning. An
// output that would land on an input file always gets a "-N" suffix.
func planOutputs(inputs []registry.InputFile, dest string, req Request, log Logger) []FileResult {
	resolver := naming.NewCollisionResolver()
	for _, in := range inputs {
		resolver.Claim(sourceOwner, absPath(in.Path))
	}

	results := make([]FileResult, len(inputs))
	for i, in := range inputs {
		path := absPath(naming.OutputPath(dest, in.Path, req.Format.Extension()))
		if req.Password != "" {
			path += seal.Extension
		}
		if owner, _ := resolver.Owner(path); owner == sourceOwner {
			renamed := resolver.Resolve(in.Path, path)
			log.Warn("%s would replace an input file; saving as %s", filepath.Base(path), filepath.Base(renamed))
			path = renamed
		} else if req.Dedupe {
			path = resolver.Resolve(in.Path, path)
		} else if prev, collided := resolver.Claim(in.Path, path); collided {
			log.Warn("%s overwrites the output of %s", in.Name(), filepath.Base(prev))
		}
		results[i] = FileResult{Input: in, OutputPath: path}
	}
	return results
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// createBatchFolder creates dir, or "<dir>-N" when an earlier batch already
// took that name within the same second. It returns the folder it created.
func createBatchFolder(dir string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return dir, err
	}
	candidate := dir
	for n := 1; ; n++ {
		err := os.Mkdir(candidate, 0o755)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return candidate, err
		}
		candidate = fmt.Sprintf("%s-%d", dir, n)
	}
}

type saver struct {
	req   Request
	deps  Deps
	total int

	mu   sync.Mutex // Serialises Progress callbacks.
	done int
}

// run converts every planned result in place, at most req.Jobs at a time.
// Cancellation is checked before each file starts; files not yet started are
// marked with ctx.Err().
func (s *saver) run(ctx context.Context, results []FileResult) {
	jobs := s.req.Jobs
	if jobs < 1 {
		jobs = 1
	}
	var g errgroup.Group
	g.SetLimit(jobs)

	for i := range results {
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			s.report(results[i])
			continue
		}
		i := i
		g.Go(func() error {
			s.convertOne(ctx, i, &results[i])
			s.report(results[i])
			return nil
		})
	}
	_ = g.Wait()
}

func (s *saver) report(r FileResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done++
	s.deps.Progress(Progress{Done: s.done, Total: s.total, Result: r})
}

// convertOne runs decode → encode → seal → write → verify for one input.
func (s *saver) convertOne(ctx context.Context, i int, res *FileResult) {
	log := s.deps.Log
	req := s.req
	in := res.Input

	if err := ctx.Err(); err != nil {
		res.Err = err
		return
	}
	log.Info("[%d/%d] %s", i+1, s.total, in.Name())

	if fi, err := os.Stat(in.Path); err == nil {
		res.InputBytes = fi.Size()
	}

	img, err := s.deps.Codec.Decode(ctx, in.Path)
	if err != nil && ctx.Err() != nil {
		res.Err = ctx.Err()
		return
	}
	if err != nil {
		res.Err = &ConvertError{Name: in.Name(), Err: err}
		log.Error("%s", describe(res.Err))
		return
	}

	encoded, err := s.deps.Codec.Encode(ctx, img, req.Format, req.Quality())
	if err != nil && ctx.Err() != nil {
		res.Err = ctx.Err()
		return
	}
	if err != nil {
		res.Err = &ConvertError{Name: in.Name(), Err: err}
		log.Error("%s", describe(res.Err))
		return
	}

	payload := encoded
	if req.Password != "" {
		payload, err = s.deps.Seal(encoded, req.Password)
		if err != nil {
			res.Err = &ConvertError{Name: in.Name(), Err: fmt.Errorf("seal: %w", err)}
			log.Error("%s", describe(res.Err))
			return
		}
	}
	res.Bytes = int64(len(payload))

	if req.DryRun {
		log.Success("[DRY] Would write %s (%s, %s of original)",
			res.outputName(), display.FormatBytes(res.Bytes), display.FormatRatio(res.Bytes, res.InputBytes))
		return
	}

	if err := writeAtomic(res.OutputPath, payload); err != nil {
		res.Err = &WriteError{Name: res.outputName(), Err: err}
		log.Error("%s", res.Err)
		return
	}

	if req.Verify {
		if err := s.verify(ctx, res.OutputPath, img.Bounds()); err != nil {
			res.Err = &VerifyError{Name: res.outputName(), Err: err}
			log.Error("%s", describe(res.Err))
			return
		}
	}

	log.Success("Saved %s (%s, %s of original)",
		res.outputName(), display.FormatBytes(res.Bytes), display.FormatRatio(res.Bytes, res.InputBytes))
}

// verify reads the written file back and checks that it decodes to an image
// of the source's dimensions.
func (s *saver) verify(ctx context.Context, path string, want image.Rectangle) error {
	if !s.deps.Codec.CanDecode(s.req.Format) {
		s.deps.Log.Debug(s.req.Verbose, "  Skipping integrity check: cannot decode %s here", s.req.Format)
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if s.req.Password != "" {
		if data, err = seal.Open(data, s.req.Password); err != nil {
			return err
		}
	}
	img, err := s.deps.Codec.DecodeBytes(ctx, data)
	if err != nil {
		return err
	}
	got := img.Bounds()
	if got.Dx() != want.Dx() || got.Dy() != want.Dy() {
		return fmt.Errorf("read back %dx%d, want %dx%d", got.Dx(), got.Dy(), want.Dx(), want.Dy())
	}
	return nil
}

// writeAtomic writes data to a uniquely named temp file beside path and
// renames it into place, so a failed write never leaves a truncated output.
func writeAtomic(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
