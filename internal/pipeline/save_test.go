package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/imgshift/internal/codec"
	"github.com/backmassage/imgshift/internal/seal"
)

func TestSaveAll_NoImages(t *testing.T) {
	env, deps := newTestEnv(t)

	out, err := SaveAll(context.Background(), nil, baseRequest(codec.FormatJPEG), deps)
	require.ErrorIs(t, err, ErrNoImages)
	assert.Equal(t, "No images selected", err.Error())
	assert.Empty(t, out.Results)
	assert.Zero(t, env.chooser.calls, "chooser must not be consulted")
	assert.Empty(t, listDir(t, env.out))
	assert.Empty(t, env.recorded())
}

func TestSaveAll_ChooserCancelled(t *testing.T) {
	env, deps := newTestEnv(t)
	env.chooser.err = ErrCancelled
	src := t.TempDir()
	inputs := selection(t, writePNG(t, src, "a.png", 8, 8), writePNG(t, src, "b.png", 8, 8))

	req := baseRequest(codec.FormatJPEG)
	req.SingleFile = true
	out, err := SaveAll(context.Background(), inputs, req, deps)
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Empty(t, out.Results)
	assert.Empty(t, listDir(t, env.out))
	assert.Empty(t, env.recorded(), "no reveal, no quit")
}

func TestSaveAll_SingleFileWritesIntoChosenFolder(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	inputs := selection(t, writePNG(t, src, "IMG_0001.PNG", 40, 30))

	out, err := SaveAll(context.Background(), inputs, baseRequest(codec.FormatJPEG), deps)
	require.NoError(t, err)

	want := filepath.Join(env.out, "IMG_0001.jpeg")
	assert.Equal(t, env.out, out.Destination)
	require.Len(t, out.Results, 1)
	assert.NoError(t, out.Results[0].Err)
	assert.Equal(t, want, out.Results[0].OutputPath)
	assert.Equal(t, want, out.RevealPath)
	assert.Equal(t, []string{"reveal " + want}, env.recorded())
	assert.Equal(t, []string{"IMG_0001.jpeg"}, listDir(t, env.out))

	img, err := codec.NewConverter(nil).Decode(context.Background(), want)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())

	st := out.Stats()
	assert.Equal(t, 1, st.Saved)
	assert.Positive(t, st.TotalOutputBytes)
	assert.Positive(t, st.TotalInputBytes)
}

func TestSaveAll_BatchCreatesTimestampedFolder(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	inputs := selection(t,
		writePNG(t, src, "a.png", 8, 8),
		writePNG(t, src, "b.png", 9, 9),
		writePNG(t, src, "c.png", 10, 10),
	)

	out, err := SaveAll(context.Background(), inputs, baseRequest(codec.FormatPNG), deps)
	require.NoError(t, err)

	batch := filepath.Join(env.out, "Converted_20240305090703")
	assert.Equal(t, batch, out.Destination)
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, listDir(t, batch))
	assert.Equal(t, []string{"reveal " + batch}, env.recorded())
	assert.NoError(t, out.Err())
}

func TestSaveAll_PerFileFailuresDoNotStopBatch(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	inputs := selection(t,
		writePNG(t, src, "good.png", 8, 8),
		touch(t, src, "bad.png"),
		writePNG(t, src, "fine.png", 8, 8),
	)

	out, err := SaveAll(context.Background(), inputs, baseRequest(codec.FormatGIF), deps)
	require.NoError(t, err)

	require.Len(t, out.Results, 3)
	assert.NoError(t, out.Results[0].Err)
	assert.NoError(t, out.Results[2].Err)

	var ce *ConvertError
	require.ErrorAs(t, out.Results[1].Err, &ce)
	assert.Equal(t, "Failed to convert bad.png", ce.Error())
	assert.ErrorIs(t, out.Results[1].Err, codec.ErrDecode)

	batch := filepath.Join(env.out, "Converted_20240305090703")
	assert.Equal(t, []string{"fine.gif", "good.gif"}, listDir(t, batch))

	st := out.Stats()
	assert.Equal(t, 2, st.Saved)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, []string{"reveal " + batch}, env.recorded(), "reveal still happens")
}

func TestSaveAll_WebpTargetFailsEveryFile(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	inputs := selection(t, writePNG(t, src, "a.png", 8, 8), writePNG(t, src, "b.jpg", 8, 8))

	out, err := SaveAll(context.Background(), inputs, baseRequest(codec.FormatWEBP), deps)
	require.NoError(t, err)

	for _, r := range out.Results {
		assert.ErrorIs(t, r.Err, codec.ErrNoEncoder)
		assert.True(t, strings.HasPrefix(r.Err.Error(), "Failed to convert "))
		assert.Contains(t, describe(r.Err), "no encoder available for WEBP")
	}
	assert.Empty(t, listDir(t, filepath.Join(env.out, "Converted_20240305090703")))
}

func TestSaveAll_WriteError(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	inputs := selection(t, writePNG(t, src, "a.png", 8, 8))
	// A directory squatting on the output name makes the rename fail.
	require.NoError(t, os.Mkdir(filepath.Join(env.out, "a.bmp"), 0o755))

	out, err := SaveAll(context.Background(), inputs, baseRequest(codec.FormatBMP), deps)
	require.NoError(t, err)

	var we *WriteError
	require.ErrorAs(t, out.Results[0].Err, &we)
	assert.Equal(t, "a.bmp", we.Name)
	assert.True(t, strings.HasPrefix(we.Error(), "Error writing file a.bmp: "), we.Error())
	assert.NotContains(t, we.Error(), ".tmp", "reason must not leak the temp path")

	for _, name := range listDir(t, env.out) {
		assert.False(t, strings.HasSuffix(name, ".tmp"), "temp file left behind: %s", name)
	}
}

func TestSaveAll_FolderError(t *testing.T) {
	env, deps := newTestEnv(t)
	env.chooser.folder = touch(t, t.TempDir(), "not-a-dir")
	src := t.TempDir()
	inputs := selection(t, writePNG(t, src, "a.png", 8, 8), writePNG(t, src, "b.png", 8, 8))

	out, err := SaveAll(context.Background(), inputs, baseRequest(codec.FormatJPEG), deps)
	var fe *FolderError
	require.ErrorAs(t, err, &fe)
	assert.True(t, strings.HasPrefix(err.Error(), "Could not create folder: "), err.Error())
	assert.Empty(t, out.Results, "no per-file work after a folder failure")
	assert.Empty(t, env.recorded())
}

func TestSaveAll_SingleFileContextQuitsAfterReveal(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	inputs := selection(t, writePNG(t, src, "a.png", 8, 8))

	req := baseRequest(codec.FormatTIFF)
	req.SingleFile = true
	_, err := SaveAll(context.Background(), inputs, req, deps)
	require.NoError(t, err)

	assert.Equal(t, []string{"reveal " + filepath.Join(env.out, "a.tiff"), "quit"}, env.recorded())
}

func TestSaveAll_RevealFailureIsAWarning(t *testing.T) {
	env, deps := newTestEnv(t)
	env.revealer.err = errors.New("no file browser")
	src := t.TempDir()
	inputs := selection(t, writePNG(t, src, "a.png", 8, 8))

	out, err := SaveAll(context.Background(), inputs, baseRequest(codec.FormatPNG), deps)
	require.NoError(t, err)
	assert.Empty(t, out.RevealPath)
	assert.Contains(t, env.log.String(), "[WARN] Could not reveal")
}

func TestSaveAll_NoRevealOption(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	inputs := selection(t, writePNG(t, src, "a.png", 8, 8))

	req := baseRequest(codec.FormatPNG)
	req.Reveal = false
	_, err := SaveAll(context.Background(), inputs, req, deps)
	require.NoError(t, err)
	assert.Empty(t, env.recorded())
}

func TestSaveAll_SameNameOverwritesWithWarning(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	inputs := selection(t,
		writePNG(t, src, "one/photo.png", 8, 8),
		writePNG(t, src, "two/photo.gif", 12, 12),
	)

	out, err := SaveAll(context.Background(), inputs, baseRequest(codec.FormatPNG), deps)
	require.NoError(t, err)

	batch := filepath.Join(env.out, "Converted_20240305090703")
	assert.Equal(t, []string{"photo.png"}, listDir(t, batch))
	assert.Equal(t, out.Results[0].OutputPath, out.Results[1].OutputPath)
	assert.Contains(t, env.log.String(), "[WARN] photo.gif overwrites the output of photo.png")

	img, err := codec.NewConverter(nil).Decode(context.Background(), filepath.Join(batch, "photo.png"))
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx(), "later file wins")
}

func TestSaveAll_Dedupe(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	inputs := selection(t,
		writePNG(t, src, "one/photo.png", 8, 8),
		writePNG(t, src, "two/photo.gif", 8, 8),
		writePNG(t, src, "three/photo.bmp", 8, 8),
	)

	req := baseRequest(codec.FormatJPEG)
	req.Dedupe = true
	out, err := SaveAll(context.Background(), inputs, req, deps)
	require.NoError(t, err)

	batch := filepath.Join(env.out, "Converted_20240305090703")
	assert.Equal(t, []string{"photo-1.jpeg", "photo-2.jpeg", "photo.jpeg"}, listDir(t, batch))
	assert.Equal(t, filepath.Join(batch, "photo.jpeg"), out.Results[0].OutputPath)
	assert.Equal(t, filepath.Join(batch, "photo-1.jpeg"), out.Results[1].OutputPath)
	assert.Equal(t, filepath.Join(batch, "photo-2.jpeg"), out.Results[2].OutputPath)
}

func TestSaveAll_PasswordSealsOutputs(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	inputs := selection(t, writePNG(t, src, "a.png", 16, 10))

	req := baseRequest(codec.FormatPNG)
	req.Password = "hunter2"
	out, err := SaveAll(context.Background(), inputs, req, deps)
	require.NoError(t, err)
	require.NoError(t, out.Results[0].Err)

	path := filepath.Join(env.out, "a.png.sealed")
	assert.Equal(t, path, out.Results[0].OutputPath)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, seal.IsSealed(data))

	plain, err := seal.Open(data, "hunter2")
	require.NoError(t, err)
	img, err := codec.NewConverter(nil).DecodeBytes(context.Background(), plain)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 10), img.Bounds())
}

func TestSaveAll_DryRunWritesNothing(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	inputs := selection(t, writePNG(t, src, "a.png", 8, 8), writePNG(t, src, "b.png", 8, 8))

	req := baseRequest(codec.FormatJPEG)
	req.DryRun = true
	out, err := SaveAll(context.Background(), inputs, req, deps)
	require.NoError(t, err)

	assert.Empty(t, listDir(t, env.out))
	assert.Empty(t, env.recorded())
	assert.True(t, out.DryRun)
	for _, r := range out.Results {
		assert.NoError(t, r.Err)
		assert.Positive(t, r.Bytes)
	}
}

func TestSaveAll_VerifyDetectsMismatch(t *testing.T) {
	env, deps := newTestEnv(t)
	deps.Codec = &stubCodec{
		Converter: codec.NewConverter(nil),
		decodeBytes: func(context.Context, []byte) (image.Image, error) {
			return image.NewGray(image.Rect(0, 0, 1, 1)), nil
		},
	}
	src := t.TempDir()
	inputs := selection(t, writePNG(t, src, "a.png", 8, 8))

	out, err := SaveAll(context.Background(), inputs, baseRequest(codec.FormatPNG), deps)
	require.NoError(t, err)

	var ve *VerifyError
	require.ErrorAs(t, out.Results[0].Err, &ve)
	assert.Equal(t, "Integrity check failed for a.png", ve.Error())
	assert.FileExists(t, filepath.Join(env.out, "a.png"))

	req := baseRequest(codec.FormatPNG)
	req.Verify = false
	out, err = SaveAll(context.Background(), inputs, req, deps)
	require.NoError(t, err)
	assert.NoError(t, out.Results[0].Err)
}

func TestSaveAll_ParallelKeepsInputOrder(t *testing.T) {
	env, deps := newTestEnv(t)
	var progress []Progress
	deps.Progress = func(p Progress) { progress = append(progress, p) }

	src := t.TempDir()
	var paths []string
	for _, name := range []string{"h", "g", "f", "e", "d", "c", "b", "a"} {
		paths = append(paths, writePNG(t, src, name+".png", 24, 24))
	}
	inputs := selection(t, paths...)

	req := baseRequest(codec.FormatJPEG)
	req.Jobs = 4
	out, err := SaveAll(context.Background(), inputs, req, deps)
	require.NoError(t, err)

	batch := filepath.Join(env.out, "Converted_20240305090703")
	require.Len(t, out.Results, len(inputs))
	for i, r := range out.Results {
		assert.Equal(t, inputs[i], r.Input)
		assert.Equal(t, filepath.Join(batch, inputs[i].BaseName()+".jpeg"), r.OutputPath)
		assert.NoError(t, r.Err)
	}

	require.Len(t, progress, len(inputs))
	for i, p := range progress {
		assert.Equal(t, i+1, p.Done)
		assert.Equal(t, len(inputs), p.Total)
	}
}

func TestSaveAll_CancelledContext(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	inputs := selection(t, writePNG(t, src, "a.png", 8, 8), writePNG(t, src, "b.png", 8, 8))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SaveAll(ctx, inputs, baseRequest(codec.FormatJPEG), deps)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, env.recorded())
}

func TestSaveAll_RequiresChooser(t *testing.T) {
	_, deps := newTestEnv(t)
	deps.Chooser = nil
	src := t.TempDir()
	inputs := selection(t, writePNG(t, src, "a.png", 8, 8))

	_, err := SaveAll(context.Background(), inputs, baseRequest(codec.FormatJPEG), deps)
	assert.Error(t, err)
}

func TestSaveAll_NeverOverwritesAnInput(t *testing.T) {
	for _, dedupe := range []bool{false, true} {
		t.Run(fmt.Sprintf("dedupe=%v", dedupe), func(t *testing.T) {
			env, deps := newTestEnv(t)
			src := writePNG(t, env.out, "photo.png", 8, 8)
			before, err := os.ReadFile(src)
			require.NoError(t, err)

			req := baseRequest(codec.FormatPNG)
			req.Level = 0
			req.Dedupe = dedupe
			out, err := SaveAll(context.Background(), selection(t, src), req, deps)
			require.NoError(t, err)
			require.NoError(t, out.Results[0].Err)

			assert.Equal(t, filepath.Join(env.out, "photo-1.png"), out.Results[0].OutputPath)
			after, err := os.ReadFile(src)
			require.NoError(t, err)
			assert.Equal(t, before, after, "source left untouched")
			assert.Equal(t, []string{"photo-1.png", "photo.png"}, listDir(t, env.out))
			assert.Contains(t, env.log.String(), "[WARN] photo.png would replace an input file; saving as photo-1.png")
		})
	}
}

func TestSaveAll_OutputDoesNotReplaceAnotherInput(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	inputs := selection(t,
		writePNG(t, src, "shot.png", 8, 8),
		writePNG(t, src, "Converted_20240305090703/shot.jpeg", 8, 8),
	)
	env.chooser.folder = src
	before, err := os.ReadFile(inputs[1].Path)
	require.NoError(t, err)

	out, err := SaveAll(context.Background(), inputs, baseRequest(codec.FormatJPEG), deps)
	require.NoError(t, err)

	// The batch folder name was taken, so this batch gets its own folder and
	// the existing file is never a target.
	assert.Equal(t, filepath.Join(src, "Converted_20240305090703-1"), out.Destination)
	after, err := os.ReadFile(inputs[1].Path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSaveAll_SameSecondBatchesGetDistinctFolders(t *testing.T) {
	env, deps := newTestEnv(t)
	src := t.TempDir()
	first := selection(t, writePNG(t, src, "a/photo.png", 8, 8), writePNG(t, src, "a/other.png", 8, 8))
	second := selection(t, writePNG(t, src, "b/photo.png", 16, 16), writePNG(t, src, "b/more.png", 8, 8))

	out1, err := SaveAll(context.Background(), first, baseRequest(codec.FormatPNG), deps)
	require.NoError(t, err)
	out2, err := SaveAll(context.Background(), second, baseRequest(codec.FormatPNG), deps)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(env.out, "Converted_20240305090703"), out1.Destination)
	assert.Equal(t, filepath.Join(env.out, "Converted_20240305090703-1"), out2.Destination)
	assert.Equal(t, []string{"other.png", "photo.png"}, listDir(t, out1.Destination))

	img, err := codec.NewConverter(nil).Decode(context.Background(), filepath.Join(out1.Destination, "photo.png"))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx(), "first batch output kept")
}
