// Package keystore provides a SQLite-backed cose.KeyGetter: a store of
// (kid, COSE_Key, certificate chain) rows that internal/httpapi's
// /cose/verify endpoint and internal/cli's "cose verify" command use to
// resolve a verification key from a message's kid header.
package keystore

import (
	"bytes"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cose"
)

// Options configures opening a key store database.
type Options struct {
	Path        string
	EnableWAL   bool
	BusyTimeout int // milliseconds
}

// Store is a SQLite-backed key store implementing cose.KeyGetter.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a key store database and initializes
// its schema.
func Open(opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open key store: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize key store schema: %w", err)
	}
	if opts.EnableWAL {
		for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL"} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("enable WAL: %w", err)
			}
		}
	}
	if opts.BusyTimeout > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS keys (
			kid           BLOB PRIMARY KEY,
			cose_key      BLOB NOT NULL,
			alg           INTEGER NOT NULL,
			cert_chain    BLOB,
			created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create keys table: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// certChainItem CBOR-encodes a DER certificate chain as an array of byte
// strings, the shape of a multi-certificate COSE x5chain header value. A
// single certificate is still stored as a one-element array, whereas the
// header writes it as a bare byte string.
func certChainItem(chain [][]byte) *cbor.Item {
	items := make([]*cbor.Item, len(chain))
	for i, c := range chain {
		items[i] = cbor.NewBytes(c)
	}
	return cbor.NewArray(items...)
}

func certChainFromItem(item *cbor.Item) ([][]byte, error) {
	if item.Kind != cbor.KindArray {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	chain := make([][]byte, len(item.Array))
	for i, c := range item.Array {
		if c.Kind != cbor.KindBytes {
			return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
		}
		chain[i] = c.Bytes
	}
	return chain, nil
}

// Register stores key under kid, along with the algorithm it's used with
// and an optional certificate chain, overwriting any existing row for kid.
func (s *Store) Register(kid []byte, key *cose.Key, alg cose.Algorithm, certChain [][]byte) error {
	var certBytes []byte
	if len(certChain) > 0 {
		certBytes = certChainItem(certChain).Encode()
	}
	_, err := s.db.Exec(
		`INSERT INTO keys (kid, cose_key, alg, cert_chain) VALUES (?, ?, ?, ?)
		 ON CONFLICT(kid) DO UPDATE SET cose_key = excluded.cose_key, alg = excluded.alg, cert_chain = excluded.cert_chain`,
		kid, key.Encode(), alg.ID, certBytes,
	)
	if err != nil {
		return fmt.Errorf("register key %x: %w", kid, err)
	}
	return nil
}

// Key implements cose.KeyGetter, looking up the stored key by kid. op is
// accepted for interface compatibility but unused: this store doesn't
// distinguish sign-capable from verify-capable rows.
func (s *Store) Key(kid []byte, op int) (*cose.Key, error) {
	var keyBytes []byte
	err := s.db.QueryRow(`SELECT cose_key FROM keys WHERE kid = ?`, kid).Scan(&keyBytes)
	if err == sql.ErrNoRows {
		return nil, cbor.ErrKind(cbor.KindKeyNotAvailable)
	}
	if err != nil {
		return nil, fmt.Errorf("look up key %x: %w", kid, err)
	}
	item, err := cbor.NewDecoder(bytes.NewReader(keyBytes)).Decode()
	if err != nil {
		return nil, fmt.Errorf("decode stored key %x: %w", kid, err)
	}
	return cose.KeyFromItem(item)
}

// CertificateChain returns the stored certificate chain for kid, if any.
func (s *Store) CertificateChain(kid []byte) ([][]byte, error) {
	var certBytes []byte
	err := s.db.QueryRow(`SELECT cert_chain FROM keys WHERE kid = ?`, kid).Scan(&certBytes)
	if err == sql.ErrNoRows {
		return nil, cbor.ErrKind(cbor.KindKeyNotAvailable)
	}
	if err != nil {
		return nil, fmt.Errorf("look up certificate chain %x: %w", kid, err)
	}
	if len(certBytes) == 0 {
		return nil, nil
	}
	item, err := cbor.NewDecoder(bytes.NewReader(certBytes)).Decode()
	if err != nil {
		return nil, fmt.Errorf("decode certificate chain %x: %w", kid, err)
	}
	return certChainFromItem(item)
}
