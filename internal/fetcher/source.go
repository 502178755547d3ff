package fetcher

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ppi-cli/internal/model"
)

// DefaultSourceURL is the BLS PPI release table page.
const DefaultSourceURL = "https://www.bls.gov/news.release/ppi.t04.htm"

// BLSSource downloads the release page and returns its tables in page order.
type BLSSource struct {
	fetcher Fetcher
	url     string
}

// NewBLSSource creates a source reading url through f.
func NewBLSSource(f Fetcher, url string) *BLSSource {
	if url == "" {
		url = DefaultSourceURL
	}
	return &BLSSource{fetcher: f, url: url}
}

// FetchTables downloads the page and parses every data table on it.
func (s *BLSSource) FetchTables(ctx context.Context) ([]model.RawTable, error) {
	log := zap.L().With(zap.String("component", "fetcher.bls"), zap.String("url", s.url))

	doc, err := s.fetcher.Download(ctx, s.url)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: fetch source page")
	}
	defer doc.Close() //nolint:errcheck

	tables, err := ParseTables(doc, doc.ContentType)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse %s", s.url)
	}

	log.Info("source tables parsed", zap.Int("tables", len(tables)))
	return tables, nil
}
