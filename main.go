package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/zots0127/dedupstore/pkg/blob"
	"github.com/zots0127/dedupstore/pkg/service"
	"github.com/zots0127/dedupstore/pkg/store"
)

func main() {
	config := LoadConfig()

	blobs, err := newBlobStore(config)
	if err != nil {
		log.Fatal("Failed to initialize blob store: ", err)
	}

	st, err := store.Open(config.Storage.Database, blobs)
	if err != nil {
		log.Fatal("Failed to open store: ", err)
	}
	defer st.Close()

	files := service.NewFileService(st, blobs)
	api := NewAPI(files, config.API.Key)

	router := gin.Default()
	api.RegisterRoutes(router)

	log.Printf("Starting server on port %s (blob backend: %s)", config.API.Port, config.Storage.Backend)
	if err := router.Run(":" + config.API.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}

func newBlobStore(config *Config) (blob.Store, error) {
	switch config.Storage.Backend {
	case "s3":
		return blob.NewS3Store(blob.S3Config{
			Endpoint:  config.Storage.S3.Endpoint,
			Region:    config.Storage.S3.Region,
			Bucket:    config.Storage.S3.Bucket,
			AccessKey: config.Storage.S3.AccessKey,
			SecretKey: config.Storage.S3.SecretKey,
			KeyPrefix: config.Storage.S3.KeyPrefix,
		})
	default:
		return blob.NewDiskStore(config.Storage.Path)
	}
}
