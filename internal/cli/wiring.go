package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/facturador/internal/core"
	"github.com/JonMunkholm/facturador/internal/issuance"
	"github.com/JonMunkholm/facturador/internal/journal"
)

func (o *options) aliases() (core.ColumnAliases, error) {
	return core.LoadAliasFile(o.cfg.Upload.AliasesFile)
}

func (o *options) issuer() (*issuance.Client, error) {
	if err := o.cfg.RequireIssuance(); err != nil {
		return nil, err
	}
	ic := o.cfg.Issuance
	return issuance.NewClient(issuance.Config{
		BaseURL:          ic.BaseURL,
		Token:            ic.APIToken,
		Timeout:          ic.Timeout,
		MaxResponseBytes: ic.MaxResponseBytes,
	}, nil)
}

// openJournal connects when a journal database is configured. The returned
// close func is always safe to call.
func (o *options) openJournal(ctx context.Context) (*journal.Journal, func(), error) {
	jc := o.cfg.Journal
	if !jc.Enabled() {
		return nil, func() {}, nil
	}
	pool, err := journal.Connect(ctx, journal.PoolConfig{
		URL:             jc.URL,
		MaxConns:        jc.MaxConns,
		MinConns:        jc.MinConns,
		MaxConnLifetime: jc.MaxConnLifetime,
		MaxConnIdleTime: jc.MaxConnIdleTime,
	})
	if err != nil {
		return nil, func() {}, err
	}
	return journal.New(pool), pool.Close, nil
}

// readSpreadsheet reads path and enforces the upload size limit.
func (o *options) readSpreadsheet(path string) (string, []byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, err
	}
	if limit := o.cfg.Upload.MaxFileSize; limit > 0 && info.Size() > limit {
		return "", nil, fmt.Errorf("%s: file too large (%d bytes, limit %d)", path, info.Size(), limit)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	return filepath.Base(path), data, nil
}
