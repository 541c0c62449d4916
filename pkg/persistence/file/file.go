// Package file provides a file-based persistence implementation storing one JSON document per entity.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	flujoRepo    *FlujoRepository
	faceIDRepo   *StepRepository[*models.FaceID]
	contactRepo  *StepRepository[*models.ContactInfo]
	signatureRep *StepRepository[*models.Signature]
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	mu := &sync.RWMutex{}

	return &Persistence{
		root:         cleanRoot,
		flujoRepo:    &FlujoRepository{root: cleanRoot, mu: mu},
		faceIDRepo:   &StepRepository[*models.FaceID]{root: cleanRoot, dir: "faceids", kind: models.StepFace, mu: mu},
		contactRepo:  &StepRepository[*models.ContactInfo]{root: cleanRoot, dir: "contactinfos", kind: models.StepContactInfo, mu: mu},
		signatureRep: &StepRepository[*models.Signature]{root: cleanRoot, dir: "signatures", kind: models.StepSignature, mu: mu},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) FlujoRepository() persistence.FlujoRepository {
	return fp.flujoRepo
}

func (fp *Persistence) FaceIDRepository() persistence.StepRepository[*models.FaceID] {
	return fp.faceIDRepo
}

func (fp *Persistence) ContactInfoRepository() persistence.StepRepository[*models.ContactInfo] {
	return fp.contactRepo
}

func (fp *Persistence) SignatureRepository() persistence.StepRepository[*models.Signature] {
	return fp.signatureRep
}
