package connectors

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/xela07ax/trust-center/internal/infra"
)

// Fetcher: общий контракт HTTPSource, DirSource и StaticSource.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// FromConfig выбирает источник: локальный каталог важнее base_url.
func FromConfig(cfg infra.SourceConfig) (Fetcher, error) {
	switch {
	case cfg.Dir != "":
		return NewDirSource(cfg.Dir), nil
	case cfg.BaseURL != "":
		// Таймаут попытки задает reliability-обертка, здесь только транспорт
		client := &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
		src, err := NewHTTPSource(cfg.BaseURL, client, cfg.CacheBust)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, errors.New("connectors: neither source.dir nor source.base_url is set")
	}
}
