package network

import (
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/models"
)

// NewDurableStore returns the BlobStore described by the config's
// DurableStore settings.
func NewDurableStore(config *models.Config) (BlobStore, error) {
	if err := config.EnsureDurableStoreConfig(); err != nil {
		return nil, err
	}
	storeConfig := config.DurableStore
	switch storeConfig.Provider {
	case constants.StoreDisk:
		return NewDiskStore(storeConfig.Bucket)
	case constants.StoreMinio:
		return NewMinioStore(storeConfig.Endpoint, storeConfig.Region,
			storeConfig.Bucket, storeConfig.UseSSL)
	case constants.StoreS3:
		_session, err := GetS3Session(storeConfig.Region, storeConfig.Endpoint)
		if err != nil {
			return nil, err
		}
		return NewS3Store(_session, storeConfig.Bucket), nil
	}
	return nil, fmt.Errorf("Unknown durable store provider '%s'", storeConfig.Provider)
}
