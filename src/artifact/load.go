package artifact

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

/*
Load reads, compiles and checks an artifact against what the caller was
configured for. Any mismatch is returned here so that a session is never
built around an incompatible model.
*/
func Load(ctx context.Context, src Source, expect Expectation) (*Artifact, error) {
	if err := expect.Validate(); err != nil {
		return nil, err
	}
	a, err := Open(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := expect.Check(a); err != nil {
		log.WithFields(log.Fields{
			"source": src.String(),
			"error":  err,
		}).Error("ARTIFACT: REJECTED")
		return nil, err
	}

	log.WithFields(log.Fields{
		"source":     src.String(),
		"family":     a.Family.String(),
		"bufferSize": a.BufferSize(),
	}).Info("ARTIFACT: LOADED " + a.Describe())

	return a, nil
}

// Open reads and compiles an artifact without checking its shape.
func Open(ctx context.Context, src Source) (*Artifact, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("artifact: open %s: %w", src, err)
	}
	defer rc.Close()

	a, err := Decode(rc)
	if err != nil {
		return nil, err
	}
	if err := a.Compile(); err != nil {
		return nil, err
	}
	return a, nil
}

// Save writes a to path.
func Save(path string, a *Artifact) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("artifact: %w", err)
	}
	if err := Encode(f, a); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
