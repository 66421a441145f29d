package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tyonekura/nfsserver/internal/content"
	"github.com/tyonekura/nfsserver/internal/logger"
	"github.com/tyonekura/nfsserver/internal/metadata"
	"github.com/tyonekura/nfsserver/internal/metadata/persistence/memory"
	"github.com/tyonekura/nfsserver/pkg/adapter/nfs"
	"github.com/tyonekura/nfsserver/pkg/registry"
	dittoserver "github.com/tyonekura/nfsserver/pkg/server"
	contentfs "github.com/tyonekura/nfsserver/pkg/store/content/fs"
	storemetadata "github.com/tyonekura/nfsserver/pkg/store/metadata"
	metadatabadger "github.com/tyonekura/nfsserver/pkg/store/metadata/badger"
)

func createInitialStructure(ctx context.Context, repo *memory.MemoryRepository, contentRepo *content.FSContentRepository, rootHandle metadata.FileHandle) error {
	now := time.Now()

	imagesAttr := &metadata.FileAttr{
		Type:      metadata.FileTypeDirectory,
		Mode:      0755,
		UID:       501,
		GID:       20,
		Size:      4096,
		Atime:     now,
		Mtime:     now,
		Ctime:     now,
		ContentID: "",
	}

	imagesHandle, err := repo.AddFileToDirectory(ctx, rootHandle, "images", imagesAttr)
	if err != nil {
		return fmt.Errorf("failed to create images directory: %w", err)
	}

	imageFiles := []struct {
		name    string
		content string
	}{
		{"background1.png", "PNG image content for background1"},
		{"background2.jpg", "JPEG image content for background2"},
		{"wallpaper.png", "PNG image content for wallpaper"},
	}

	for _, img := range imageFiles {
		contentID := content.ContentID(fmt.Sprintf("img-%s", img.name))

		if err := contentRepo.WriteContent(ctx, contentID, []byte(img.content)); err != nil {
			return fmt.Errorf("failed to write content for %s: %w", img.name, err)
		}

		fileAttr := &metadata.FileAttr{
			Type:      metadata.FileTypeRegular,
			Mode:      0644,
			UID:       501,
			GID:       20,
			Size:      uint64(len(img.content)),
			Atime:     now,
			Mtime:     now,
			Ctime:     now,
			ContentID: contentID,
		}

		if _, err := repo.AddFileToDirectory(ctx, imagesHandle, img.name, fileAttr); err != nil {
			return fmt.Errorf("failed to create %s: %w", img.name, err)
		}
	}

	textFiles := []struct {
		name    string
		content string
	}{
		{"readme.txt", "This is a README file.\nWelcome to dittofs!\n"},
		{"notes.txt", "Some notes about this NFS server.\nIt's pretty cool!\n"},
	}

	for _, txt := range textFiles {
		contentID := content.ContentID(fmt.Sprintf("txt-%s", txt.name))

		if err := contentRepo.WriteContent(ctx, contentID, []byte(txt.content)); err != nil {
			return fmt.Errorf("failed to write content for %s: %w", txt.name, err)
		}

		fileAttr := &metadata.FileAttr{
			Type:      metadata.FileTypeRegular,
			Mode:      0644,
			UID:       501,
			GID:       20,
			Size:      uint64(len(txt.content)),
			Atime:     now,
			Mtime:     now,
			Ctime:     now,
			ContentID: contentID,
		}

		if _, err := repo.AddFileToDirectory(ctx, rootHandle, txt.name, fileAttr); err != nil {
			return fmt.Errorf("failed to create %s: %w", txt.name, err)
		}
	}

	return nil
}

func main() {
	exportPath := flag.String("export", "/export", "NFS export path exposed by both MOUNT/NFSv3 and NFSv4")
	port := flag.Int("port", 2049, "Port to listen on for MOUNT, NFSv3, NFSv4, and NLM")
	logLevel := flag.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	contentPath := flag.String("content-path", "/tmp/dittofs-content", "Path to store file content")
	metadataPath := flag.String("metadata-path", "/tmp/dittofs-metadata", "Path to the badger metadata database backing NFSv4")

	maxConnections := flag.Int("max-connections", 0, "Maximum concurrent connections (0 = unlimited)")
	readTimeout := flag.Duration("read-timeout", 5*time.Minute, "Read timeout for RPC requests")
	writeTimeout := flag.Duration("write-timeout", 30*time.Second, "Write timeout for RPC responses")
	idleTimeout := flag.Duration("idle-timeout", 5*time.Minute, "Idle timeout between requests")
	shutdownTimeout := flag.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	metricsInterval := flag.Duration("metrics-interval", 5*time.Minute, "Interval for logging metrics (0 to disable)")

	tlsCert := flag.String("tls-cert", "", "Path to a TLS certificate; enables RFC 9289 RPC-with-TLS when set together with -tls-key")
	tlsKey := flag.String("tls-key", "", "Path to the TLS private key matching -tls-cert")

	dumpRestricted := flag.Bool("dump-restricted", false, "Restrict DUMP to localhost only")

	flag.Parse()

	logger.SetLevel(*logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Println("DittoFS - Dynamic NFS Server")
	logger.Info("Log level set to: %s", *logLevel)
	logger.Info("Export: %s on port %d", *exportPath, *port)

	// The NFSv3/MOUNT path is pinned to a single in-process repository pair,
	// separate from the registry-resolved stores NFSv4/NLM use per share.
	contentRepo, err := content.NewFSContentRepository(ctx, *contentPath)
	if err != nil {
		log.Fatalf("Failed to create content repository: %v", err)
	}

	metadataRepo := memory.NewMemoryRepository()

	repoConfig := metadata.ServerConfig{}
	if *dumpRestricted {
		repoConfig.DumpAllowedClients = []string{"127.0.0.1", "::1"}
		logger.Info("DUMP access restricted to localhost")
	} else {
		logger.Info("DUMP access unrestricted (default)")
	}
	if err := metadataRepo.SetServerConfig(ctx, repoConfig); err != nil {
		log.Fatalf("Failed to set server config: %v", err)
	}

	now := time.Now()
	rootAttr := &metadata.FileAttr{
		Type:      metadata.FileTypeDirectory,
		Mode:      0755,
		UID:       501,
		GID:       20,
		Size:      4096,
		Atime:     now,
		Mtime:     now,
		Ctime:     now,
		ContentID: "",
	}

	anonUID := uint32(metadata.DefaultAnonUID)
	anonGID := uint32(metadata.DefaultAnonGID)

	if err := metadataRepo.AddExport(ctx, *exportPath, metadata.ExportOptions{
		ReadOnly:  false,
		Async:     true,
		AllSquash: true,
		AnonUID:   &anonUID,
		AnonGID:   &anonGID,
	}, rootAttr); err != nil {
		log.Fatalf("Failed to add export: %v", err)
	}
	logger.Info("Export added: %s (read-write, all_squash)", *exportPath)

	rootHandle, err := metadataRepo.GetRootHandle(ctx, *exportPath)
	if err != nil {
		log.Fatalf("Failed to get root handle: %v", err)
	}

	if err := createInitialStructure(ctx, metadataRepo, contentRepo, rootHandle); err != nil {
		log.Fatalf("Failed to create initial structure: %v", err)
	}
	logger.Info("Initial file structure created")

	// NFSv4, NLM, and NSM resolve stores per-share through the registry.
	// The badger metadata store and filesystem content store below back the
	// same export path as the NFSv3 tree above, but the two are independent
	// repositories rather than a single shared backend.
	v4Metadata, err := metadatabadger.NewBadgerMetadataStoreWithDefaults(ctx, *metadataPath)
	if err != nil {
		log.Fatalf("Failed to open badger metadata store: %v", err)
	}
	v4Content, err := contentfs.NewFSContentStore(ctx, *contentPath+"-v4")
	if err != nil {
		log.Fatalf("Failed to create v4 content store: %v", err)
	}

	reg := registry.NewRegistry()
	if err := reg.RegisterMetadataStore("badger-main", v4Metadata); err != nil {
		log.Fatalf("Failed to register metadata store: %v", err)
	}
	if err := reg.RegisterContentStore("fs-main", v4Content); err != nil {
		log.Fatalf("Failed to register content store: %v", err)
	}
	if err := reg.AddShare(ctx, &registry.ShareConfig{
		Name:          *exportPath,
		MetadataStore: "badger-main",
		ContentStore:  "fs-main",
		ReadOnly:      false,
		AnonymousUID:  anonUID,
		AnonymousGID:  anonGID,
		RootAttr: &storemetadata.FileAttr{
			Type: storemetadata.FileTypeDirectory,
			Mode: 0755,
			UID:  501,
			GID:  20,
		},
	}); err != nil {
		log.Fatalf("Failed to add share: %v", err)
	}

	nfsConfig := nfs.NFSConfig{
		Enabled:            true,
		Port:               *port,
		MaxConnections:     *maxConnections,
		ReadTimeout:        *readTimeout,
		WriteTimeout:       *writeTimeout,
		IdleTimeout:        *idleTimeout,
		ShutdownTimeout:    *shutdownTimeout,
		MetricsLogInterval: *metricsInterval,
	}
	if *tlsCert != "" && *tlsKey != "" {
		nfsConfig.TLS.Enabled = true
		nfsConfig.TLS.CertFile = *tlsCert
		nfsConfig.TLS.KeyFile = *tlsKey
		logger.Info("RPC-with-TLS enabled (cert=%s)", *tlsCert)
	}

	logger.Info("Server configuration:")
	logger.Info("  Port: %d", nfsConfig.Port)
	if nfsConfig.MaxConnections > 0 {
		logger.Info("  Max connections: %d", nfsConfig.MaxConnections)
	} else {
		logger.Info("  Max connections: unlimited")
	}
	logger.Info("  Read timeout: %v", nfsConfig.ReadTimeout)
	logger.Info("  Write timeout: %v", nfsConfig.WriteTimeout)
	logger.Info("  Idle timeout: %v", nfsConfig.IdleTimeout)
	logger.Info("  Shutdown timeout: %v", nfsConfig.ShutdownTimeout)
	logger.Info("  Metrics interval: %v", nfsConfig.MetricsLogInterval)

	nfsAdapter := nfs.New(nfsConfig, nil)
	nfsAdapter.SetStores(metadataRepo, contentRepo)

	srv := dittoserver.New(reg, *shutdownTimeout)
	if err := srv.AddAdapter(nfsAdapter); err != nil {
		log.Fatalf("Failed to add NFS adapter: %v", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	select {
	case err := <-serverDone:
		if err != nil && err != context.Canceled {
			log.Fatalf("Server error: %v", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received, waiting for server to stop...")
		if err := <-serverDone; err != nil && err != context.Canceled {
			log.Printf("Server stopped with error: %v", err)
		}
	}

	logger.Info("DittoFS stopped")
}
