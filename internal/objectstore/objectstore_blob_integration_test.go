//go:build integration

package objectstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startAzuriteBlobClient boots a disposable Azurite container and returns a
// client authenticated against it with Azurite's well-known development
// account, since Azurite doesn't speak the managed-identity/AAD flow that
// newBlobClient uses against a real Azure Storage account.
func startAzuriteBlobClient(t *testing.T) *azblob.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mcr.microsoft.com/azure-storage/azurite:latest",
		ExposedPorts: []string{"10000/tcp"},
		WaitingFor:   wait.ForListeningPort("10000/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start azurite container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate azurite container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "10000")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	const (
		accountName = "devstoreaccount1"
		accountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
	)
	blobEndpoint := fmt.Sprintf("http://%s:%s/%s", host, port.Port(), accountName)

	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		t.Fatalf("shared key credential: %v", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(blobEndpoint, cred, nil)
	if err != nil {
		t.Fatalf("blob client: %v", err)
	}
	return client
}

func TestStoreFetchS3Scheme_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := startAzuriteBlobClient(t)
	ctx := context.Background()

	const (
		container = "regions"
		blobPath  = "podlaskie.poly"
		content   = "podlaskie region polygon data"
	)
	if _, err := client.CreateContainer(ctx, container, nil); err != nil {
		t.Fatalf("create container: %v", err)
	}
	if _, err := client.UploadBuffer(ctx, container, blobPath, []byte(content), nil); err != nil {
		t.Fatalf("upload blob: %v", err)
	}

	s := &Store{cacheDir: t.TempDir(), httpClient: nil, blobClient: client}
	uri := fmt.Sprintf("s3://%s/%s", container, blobPath)

	path, err := s.Fetch(ctx, uri)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cached file: %v", err)
	}
	if string(got) != content {
		t.Errorf("unexpected cached content: got %q, want %q", got, content)
	}

	// a second fetch should reuse the cache via If-None-Match and not
	// rewrite the local file with an empty/partial download.
	path2, err := s.Fetch(ctx, uri)
	if err != nil {
		t.Fatalf("Fetch (second): %v", err)
	}
	if path2 != path {
		t.Fatalf("expected the same cached path, got %q and %q", path, path2)
	}
	got2, err := os.ReadFile(path2)
	if err != nil {
		t.Fatalf("read cached file (second): %v", err)
	}
	if string(got2) != content {
		t.Errorf("cached content changed after the cache-hit fetch: got %q, want %q", got2, content)
	}
}
