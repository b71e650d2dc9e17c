package workers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/butykaidavid/read-rival-quest/metrics"
	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/utils"
)

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// MaxCoverMirrorAttempts is how many failed runs a book gets before its
// cover is left hotlinked.
const MaxCoverMirrorAttempts = 5

// CoverMirrorWorker copies provider cover images into object storage so
// clients are not served hotlinked thumbnails.
type CoverMirrorWorker struct {
	DB        *gorm.DB
	Storage   Uploader
	Client    *http.Client
	Interval  time.Duration
	BatchSize int
}

func NewCoverMirrorWorker(db *gorm.DB, storage Uploader, interval time.Duration) *CoverMirrorWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &CoverMirrorWorker{
		DB:        db,
		Storage:   storage,
		Client:    utils.HTTPClient,
		Interval:  interval,
		BatchSize: 25,
	}
}

// Run mirrors covers on every tick until ctx is cancelled.
func (w *CoverMirrorWorker) Run(ctx context.Context) {
	log.Println("Starting cover mirroring...")
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Cover mirroring stopped.")
			return
		case <-ticker.C:
			if _, err := w.MirrorBatch(ctx); err != nil {
				log.Printf("❌ Error mirroring covers: %v", err)
			}
		}
	}
}

// MirrorBatch mirrors up to BatchSize covers that have not been copied yet.
// A failed book is retried on later batches behind books with fewer failures,
// until MaxCoverMirrorAttempts.
func (w *CoverMirrorWorker) MirrorBatch(ctx context.Context) (int, error) {
	var books []models.Book
	err := w.DB.WithContext(ctx).
		Select("id", "cover_url").
		Where("cover_url IS NOT NULL AND cover_url <> '' AND mirrored_cover_url IS NULL").
		Where("cover_mirror_attempts < ?", MaxCoverMirrorAttempts).
		Order("cover_mirror_attempts ASC, created_at ASC").
		Limit(w.BatchSize).
		Find(&books).Error
	if err != nil {
		metrics.WorkerRuns.WithLabelValues("cover_mirror", "error").Inc()
		return 0, fmt.Errorf("failed to load books to mirror: %w", err)
	}
	if len(books) == 0 {
		metrics.WorkerRuns.WithLabelValues("cover_mirror", "ok").Inc()
		return 0, nil
	}

	log.Printf("📥 Mirroring %d cover(s)...", len(books))
	mirrored := 0
	for _, b := range books {
		if err := w.mirror(ctx, b); err != nil {
			metrics.ExternalCallFailures.WithLabelValues("r2").Inc()
			log.Printf("⚠️ Failed to mirror cover for book %s: %v", b.ID, err)
			if err := w.DB.WithContext(ctx).Model(&models.Book{}).Where("id = ?", b.ID).
				UpdateColumn("cover_mirror_attempts", gorm.Expr("cover_mirror_attempts + 1")).Error; err != nil {
				log.Printf("❌ Error recording mirror attempt for book %s: %v", b.ID, err)
			}
			continue
		}
		mirrored++
	}

	result := "ok"
	if mirrored < len(books) {
		result = "error"
	}
	metrics.WorkerRuns.WithLabelValues("cover_mirror", result).Inc()
	log.Printf("✅ Mirrored %d/%d cover(s).", mirrored, len(books))
	return mirrored, nil
}

func (w *CoverMirrorWorker) mirror(ctx context.Context, b models.Book) error {
	body, contentType, err := utils.Download(ctx, w.Client, *b.CoverURL)
	if err != nil {
		return err
	}
	key := "covers/" + b.ID + coverExtension(contentType)
	url, err := w.Storage.Upload(ctx, key, bytes.NewReader(body), contentType)
	if err != nil {
		return err
	}
	// Guarded so a concurrent run does not overwrite an existing mirror.
	return w.DB.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND mirrored_cover_url IS NULL", b.ID).
		UpdateColumn("mirrored_cover_url", url).Error
}

func coverExtension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".jpg"
	}
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
