package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/snapsolve/backend/domain"
	"github.com/snapsolve/backend/render"
	"github.com/snapsolve/backend/utils/log"
)

// ErrExportInFlight means another export holds the staging area. The
// request is a no-op; the client retries once the first export finishes.
var ErrExportInFlight = errors.New("an export is already in progress")

// ExportService turns one message into a downloadable PDF report. A single
// busy flag guards the staging area, so at most one export runs at a time
// and concurrent requests cannot produce duplicate downloads.
type ExportService struct {
	store      domain.SessionStore
	outputDir  string
	httpClient *http.Client

	busy atomic.Bool
}

func NewExportService(store domain.SessionStore, outputDir string) *ExportService {
	return &ExportService{
		store:      store,
		outputDir:  outputDir,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Export renders the message into SnapSolve_Solution_<id>.pdf under the
// output directory and returns the file path. The staging directory is
// removed on every path out; a failed export leaves no partial file behind.
func (s *ExportService) Export(ctx context.Context, sessionID, messageID string) (string, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return "", ErrExportInFlight
	}
	defer s.busy.Store(false)

	msg, err := s.store.GetMessage(sessionID, messageID)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	// Staging lives under the output directory so the final rename stays
	// on one filesystem.
	staging, err := os.MkdirTemp(s.outputDir, ".staging-")
	if err != nil {
		return "", fmt.Errorf("creating staging area: %w", err)
	}
	defer os.RemoveAll(staging)

	images := s.loadImages(ctx, msg)

	fileName := fmt.Sprintf("SnapSolve_Solution_%s.pdf", msg.ID)
	stagingPath := filepath.Join(staging, fileName)

	file, err := os.Create(stagingPath)
	if err != nil {
		return "", fmt.Errorf("creating staging file: %w", err)
	}
	if err := render.RenderPDF(*msg, images, file); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("closing staging file: %w", err)
	}

	finalPath := filepath.Join(s.outputDir, fileName)
	if err := os.Rename(stagingPath, finalPath); err != nil {
		return "", fmt.Errorf("publishing export file: %w", err)
	}
	return finalPath, nil
}

// loadImages fetches the input image and every visual aid concurrently and
// waits for all of them. A failed load drops that image and nothing else.
func (s *ExportService) loadImages(ctx context.Context, msg *domain.Message) render.ExportImages {
	type slot struct {
		ref  string
		name string
	}

	slots := make([]slot, 0, len(msg.VisualAids)+1)
	if msg.Image != "" {
		slots = append(slots, slot{ref: msg.Image, name: "input-" + msg.ID})
	}
	for i, ref := range msg.VisualAids {
		slots = append(slots, slot{ref: ref, name: fmt.Sprintf("aid-%s-%d", msg.ID, i)})
	}

	loaded := make([]*render.ExportImage, len(slots))
	var wg sync.WaitGroup
	for i, sl := range slots {
		wg.Add(1)
		go func(i int, sl slot) {
			defer wg.Done()
			img, err := s.loadImage(ctx, sl.name, sl.ref)
			if err != nil {
				log.WithCtx(ctx).Warn("skipping export image", zap.String("name", sl.name), zap.Error(err))
				return
			}
			loaded[i] = img
		}(i, sl)
	}
	wg.Wait()

	var images render.ExportImages
	idx := 0
	if msg.Image != "" {
		images.Input = loaded[0]
		idx = 1
	}
	for ; idx < len(loaded); idx++ {
		if loaded[idx] != nil {
			images.Aids = append(images.Aids, *loaded[idx])
		}
	}
	return images
}

func (s *ExportService) loadImage(ctx context.Context, name, ref string) (*render.ExportImage, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURL(name, ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return s.fetchImage(ctx, name, ref)
	default:
		return nil, fmt.Errorf("unsupported image reference")
	}
}

func decodeDataURL(name, ref string) (*render.ExportImage, error) {
	comma := strings.IndexByte(ref, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data url")
	}
	header, payload := ref[len("data:"):comma], ref[comma+1:]

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding image payload: %w", err)
	}

	imgType := "PNG"
	if strings.Contains(header, "jpeg") || strings.Contains(header, "jpg") {
		imgType = "JPG"
	}
	return &render.ExportImage{Name: name, Type: imgType, Data: data}, nil
}

func (s *ExportService) fetchImage(ctx context.Context, name, url string) (*render.ExportImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading image body: %w", err)
	}

	imgType := "PNG"
	if ct := http.DetectContentType(data); strings.Contains(ct, "jpeg") {
		imgType = "JPG"
	}
	return &render.ExportImage{Name: name, Type: imgType, Data: data}, nil
}
