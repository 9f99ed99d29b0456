package service

import (
	"context"
	"fmt"

	"github.com/torfstack/chksum/internal/logging"
	"github.com/torfstack/chksum/internal/remote"
)

// VerifyRemote checks the files below a Drive folder against their local
// copies under localRoot using the checksums Drive reports. Files without a
// Drive checksum, such as native Google documents, are skipped.
func (s *Service) VerifyRemote(ctx context.Context, lister remote.Lister, folderID, localRoot string) error {
	if folderID == "" {
		folderID = remote.RootFolderId
	}
	files, err := remote.Walk(ctx, lister, folderID)
	if err != nil {
		return fmt.Errorf("could not list drive folder '%s': %w", folderID, err)
	}
	logging.Debugf("Found %d files in drive folder '%s'", len(files), folderID)

	comparisons := remote.Compare(ctx, files, localRoot, s.cfg.BlockSize)
	if err = ctx.Err(); err != nil {
		return err
	}

	counts := map[remote.Status]int{}
	for _, c := range comparisons {
		counts[c.Status]++
		if c.Err != nil {
			logging.Debugf("%s: %s", c.Remote.Path, c.Err)
		}
		if c.Status == remote.StatusOK {
			continue
		}
		if _, err = fmt.Fprintf(s.out, "%-8s %s\n", c.Status, c.Remote.Path); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(
		s.out, "%d ok, %d mismatched, %d missing locally, %d skipped, %d errors\n",
		counts[remote.StatusOK], counts[remote.StatusMismatch], counts[remote.StatusMissingLocal],
		counts[remote.StatusNoChecksum], counts[remote.StatusError],
	)
	if err != nil {
		return err
	}

	if bad := counts[remote.StatusMismatch] + counts[remote.StatusMissingLocal] + counts[remote.StatusError]; bad > 0 {
		return fmt.Errorf("%w: %d drive files differ from their local copies", ErrVerificationFailed, bad)
	}
	return nil
}
