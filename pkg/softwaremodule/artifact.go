package softwaremodule

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/gosimple/slug"
)

// Hashes are the hex encoded checksums of an artifact binary.
type Hashes struct {
	MD5    string
	SHA1   string
	SHA256 string
}

func hash(body io.Reader) (Hashes, int64, error) {
	md5Hash, sha1Hash, sha256Hash := md5.New(), sha1.New(), sha256.New()
	size, err := io.Copy(io.MultiWriter(md5Hash, sha1Hash, sha256Hash), body)
	if err != nil {
		return Hashes{}, 0, fmt.Errorf("failed to hash artifact: %v", err)
	}

	return Hashes{
		MD5:    hex.EncodeToString(md5Hash.Sum(nil)),
		SHA1:   hex.EncodeToString(sha1Hash.Sum(nil)),
		SHA256: hex.EncodeToString(sha256Hash.Sum(nil)),
	}, size, nil
}

// verify compares the given hashes to the computed ones. Empty expected hashes are not verified.
func (h Hashes) verify(expected Hashes) error {
	checks := []struct {
		name, expected, actual string
	}{
		{"md5", expected.MD5, h.MD5},
		{"sha1", expected.SHA1, h.SHA1},
		{"sha256", expected.SHA256, h.SHA256},
	}
	for _, check := range checks {
		if check.expected != "" && !strings.EqualFold(check.expected, check.actual) {
			return errdef.NewBadRequest("%s checksum %q doesn't match the uploaded file's %q", check.name, check.expected, check.actual)
		}
	}
	return nil
}

// objectKey returns the key an artifact binary is stored under. Binaries are content addressed
// per module so uploading the same file twice stores it once.
func objectKey(tenant string, module model.SoftwareModule, sha1 string) string {
	return fmt.Sprintf("%s/%s/%s", slug.Make(tenant), slug.Make(module.Name+"-"+module.Version), sha1)
}

// Upload stores the artifact binary read from body. Body is read twice, once to compute its
// hashes and once to store it.
func (s service) Upload(ctx context.Context, moduleID uint, filename string, body io.ReadSeeker, expected Hashes) (*model.Artifact, error) {
	module, err := s.modifiable(ctx, moduleID)
	if err != nil {
		return nil, err
	}

	tenant, err := model.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	hashes, size, err := hash(body)
	if err != nil {
		return nil, err
	}
	if err := hashes.verify(expected); err != nil {
		return nil, err
	}

	for _, artifact := range module.Artifacts {
		if artifact.Filename == filename {
			return nil, errdef.NewDuplicated("artifact %q already exists on software module %d", filename, moduleID)
		}
	}

	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind artifact %q: %v", filename, err)
	}

	key := objectKey(tenant, *module, hashes.SHA1)
	err = s.store.Put(ctx, key, body, size)
	if err != nil {
		return nil, err
	}

	artifact := &model.Artifact{
		SoftwareModuleID: module.ID,
		Filename:         filename,
		Size:             size,
		MD5:              hashes.MD5,
		SHA1:             hashes.SHA1,
		SHA256:           hashes.SHA256,
		ObjectKey:        key,
	}
	err = s.repository.createArtifact(ctx, artifact)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Uploaded artifact", "softwareModuleId", module.ID, "filename", filename, "size", size)
	return artifact, nil
}

func (s service) FindArtifacts(ctx context.Context, moduleID uint) ([]model.Artifact, error) {
	module, err := s.repository.find(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	return module.Artifacts, nil
}

func (s service) FindArtifact(ctx context.Context, moduleID, artifactID uint) (*model.Artifact, error) {
	return s.repository.findArtifact(ctx, moduleID, artifactID)
}

// Download returns the artifact and its binary. The caller must close the returned reader.
func (s service) Download(ctx context.Context, moduleID, artifactID uint) (*model.Artifact, io.ReadCloser, int64, error) {
	artifact, err := s.repository.findArtifact(ctx, moduleID, artifactID)
	if err != nil {
		return nil, nil, 0, err
	}

	body, size, err := s.store.Get(ctx, artifact.ObjectKey)
	if err != nil {
		return nil, nil, 0, err
	}
	return artifact, body, size, nil
}

func (s service) DeleteArtifact(ctx context.Context, moduleID, artifactID uint) error {
	if _, err := s.modifiable(ctx, moduleID); err != nil {
		return err
	}

	artifact, err := s.repository.findArtifact(ctx, moduleID, artifactID)
	if err != nil {
		return err
	}

	err = s.repository.deleteArtifact(ctx, artifact)
	if err != nil {
		return err
	}

	s.deleteObject(ctx, artifact.ObjectKey)
	return nil
}

// deleteObject removes the binary stored under key unless another artifact still refers to it.
// Failures are only logged as the artifact rows are already gone.
func (s service) deleteObject(ctx context.Context, key string) {
	count, err := s.repository.countObjectReferences(ctx, key)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to count artifact references", "key", key, "error", err)
		return
	}
	if count > 0 {
		return
	}

	err = s.store.Delete(ctx, key)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete artifact binary", "key", key, "error", err)
	}
}

func (s service) modifiable(ctx context.Context, moduleID uint) (*model.SoftwareModule, error) {
	module, err := s.repository.find(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if module.Locked {
		return nil, errdef.NewLocked("artifacts of locked software module %d can't be changed", moduleID)
	}
	if module.Deleted {
		return nil, errdef.NewNotFound("software module %d doesn't exist", moduleID)
	}
	return module, nil
}
