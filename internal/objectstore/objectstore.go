// Package objectstore fetches region data files (poly-files, addressbook
// databases, routing engine packages) by URI and caches them locally,
// skipping re-download when the remote object's ETag still matches.
package objectstore

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// ChunkSize is the fixed chunk size used for the multipart-style ETag:
// MD5 is computed over each 8 MiB chunk, then MD5 is computed over the
// concatenated per-chunk digests, with a "-N" suffix recording the chunk
// count. A single-chunk file's ETag is the plain MD5 of its bytes.
const ChunkSize = 8 * 1024 * 1024

// blobAccountURLEnv names the Azure Storage account backing s3:// region
// URIs. The "s3" scheme name is carried over from the original deployment's
// object store naming (see config.AWSConfig); this store resolves it
// against Azure Blob Storage rather than S3.
const blobAccountURLEnv = "TRASAROUTE_BLOB_ACCOUNT_URL"

// Store caches fetched objects under the OS temp directory.
type Store struct {
	cacheDir   string
	httpClient *http.Client
	blobClient *azblob.Client
}

// New creates a store rooted at a subdirectory of os.TempDir(). If
// blobAccountURLEnv is set, s3:// region URIs are served from that Azure
// Storage account; otherwise they fail with a configuration error.
func New() (*Store, error) {
	dir := filepath.Join(os.TempDir(), "trasaroute-objects")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: create cache dir: %w", err)
	}
	s := &Store{cacheDir: dir, httpClient: &http.Client{}}

	if accountURL := os.Getenv(blobAccountURLEnv); accountURL != "" {
		client, err := newBlobClient(accountURL)
		if err != nil {
			return nil, fmt.Errorf("objectstore: %w", err)
		}
		s.blobClient = client
	}
	return s, nil
}

// Fetch resolves uri to a local file path, reusing the cached copy when
// its ETag still matches the remote's. file:// and bare paths resolve
// directly; http(s):// is re-fetched on ETag mismatch; s3:// is served
// from Azure Blob Storage via blobAccountURLEnv.
func (s *Store) Fetch(ctx context.Context, uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("objectstore: parse %q: %w", uri, err)
	}

	switch parsed.Scheme {
	case "", "file":
		return parsed.Path, nil
	case "http", "https":
		return s.fetchHTTP(ctx, uri)
	case "s3":
		return s.fetchBlob(ctx, uri, parsed)
	default:
		return "", fmt.Errorf("objectstore: unsupported scheme %q", parsed.Scheme)
	}
}

func (s *Store) cachedPath(uri string) string {
	sum := md5.Sum([]byte(uri))
	return filepath.Join(s.cacheDir, fmt.Sprintf("%x%s", sum, filepath.Ext(uri)))
}

func (s *Store) fetchHTTP(ctx context.Context, uri string) (string, error) {
	local := s.cachedPath(uri)

	remoteETag, err := s.headETag(ctx, uri)
	if err == nil && remoteETag != "" {
		if localETag, err := etagOf(local); err == nil && localETag == remoteETag {
			return local, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("objectstore: fetch %q: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("objectstore: fetch %q: status %d", uri, resp.StatusCode)
	}

	tmp := local + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, local); err != nil {
		return "", err
	}
	return local, nil
}

func (s *Store) headETag(ctx context.Context, uri string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return strings.Trim(resp.Header.Get("ETag"), `"`), nil
}

// fetchBlob resolves an s3://<container>/<blob path> URI against the
// configured Azure Storage account. The container/blob ETag is cached in
// a ".etag" sidecar file and sent back as If-None-Match, so an unchanged
// blob is rejected with a ConditionNotMet error before any body bytes
// transfer, mirroring fetchHTTP's ETag reuse.
func (s *Store) fetchBlob(ctx context.Context, uri string, parsed *url.URL) (string, error) {
	if s.blobClient == nil {
		return "", fmt.Errorf("objectstore: %q requires %s to be set", uri, blobAccountURLEnv)
	}
	container := parsed.Host
	blobPath := strings.TrimPrefix(parsed.Path, "/")
	if container == "" || blobPath == "" {
		return "", fmt.Errorf("objectstore: %q must have the form s3://<container>/<blob path>", uri)
	}

	local := s.cachedPath(uri)
	etagPath := local + ".etag"

	var ifNoneMatch *azcore.ETag
	if cached, err := os.ReadFile(etagPath); err == nil {
		e := azcore.ETag(strings.TrimSpace(string(cached)))
		ifNoneMatch = &e
	}

	resp, err := s.blobClient.DownloadStream(ctx, container, blobPath, &azblob.DownloadStreamOptions{
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: ifNoneMatch},
		},
	})
	if err != nil {
		if bloberror.HasCode(err, bloberror.ConditionNotMet) {
			return local, nil
		}
		return "", fmt.Errorf("objectstore: download blob %s/%s: %w", container, blobPath, err)
	}
	defer resp.Body.Close()

	tmp := local + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, local); err != nil {
		return "", err
	}
	if resp.ETag != nil {
		_ = os.WriteFile(etagPath, []byte(string(*resp.ETag)), 0o644)
	}
	return local, nil
}

// etagOf computes the local file's ETag per the chunked MD5 scheme: a
// file small enough to fit in one chunk gets the plain MD5 of its bytes;
// a larger file gets MD5(concat(MD5(chunk_i))) + "-N".
func etagOf(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.Size() <= ChunkSize {
		h := md5.New()
		if _, err := io.Copy(h, f); err != nil {
			return "", err
		}
		return fmt.Sprintf("%x", h.Sum(nil)), nil
	}

	var combined []byte
	chunks := 0
	buf := make([]byte, ChunkSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			sum := md5.Sum(buf[:n])
			combined = append(combined, sum[:]...)
			chunks++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	finalSum := md5.Sum(combined)
	return fmt.Sprintf("%x-%d", finalSum, chunks), nil
}

// newBlobClient authenticates against an Azure Storage account with the
// ambient default credential (managed identity in production, environment
// or CLI credentials in development).
func newBlobClient(accountURL string) (*azblob.Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("objectstore: default credential: %w", err)
	}
	return azblob.NewClient(accountURL, cred, nil)
}
