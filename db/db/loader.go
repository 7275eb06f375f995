package db

import (
	"github.com/google/uuid"
	"github.com/vikstrous/dataloadgen"
)

type dataLoaderKey string

const (
	DataLoaderKeyDriver dataLoaderKey = "driver_data_loader"
)

// DriverDataLoader batches driver lookups made while rendering one request.
//
//	loader, ok := c.Get(string(db.DataLoaderKeyDriver))
type DriverDataLoader struct {
	GetDriver *dataloadgen.Loader[uuid.UUID, *Driver]
}

func NewDriverDataLoader(dbWrapper MileageDBWrapper) *DriverDataLoader {
	return &DriverDataLoader{
		GetDriver: dataloadgen.NewMappedLoader(dbWrapper.DataLoaderGetDriverList),
	}
}
