package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/dmitrijs2005/educhain/internal/server/auth"
	"github.com/dmitrijs2005/educhain/internal/server/metrics"
	"github.com/dmitrijs2005/educhain/internal/server/models"
	"github.com/dmitrijs2005/educhain/internal/server/oracle"
	"github.com/dmitrijs2005/educhain/internal/server/repositories/documents"
)

// Verify runs the verification decision for a document the actor may
// verify. declaredType, when non-empty, corrects the declared type before
// the oracle is consulted; it is ignored for VERIFIED documents.
//
// A VERIFIED document is never attested again: Verify re-checks that the
// stored bytes still match the existing attestation and leaves its state alone.
func (s *DocumentService) Verify(ctx context.Context, actor models.Identity, documentID, declaredType string) (*models.VerificationOutcome, *models.Document, error) {
	doc, err := s.repomanager.Documents(s.db).GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, s.classify(ctx, "load document", err, "document_id", documentID)
	}
	if !auth.Can(actor, auth.ActionVerify, doc.OwnerID) {
		return nil, nil, common.ErrorForbidden
	}

	var correction *models.DocumentType
	if declaredType != "" {
		t, ok := models.ParseDocumentType(declaredType)
		if !ok {
			return nil, nil, fmt.Errorf("%w: unknown document type %q", common.ErrorValidation, declaredType)
		}
		correction = &t
	}

	return s.runVerification(ctx, documentID, correction)
}

// runVerification holds the per-document lock for the whole attempt so
// that no two attempts can attest the same document.
func (s *DocumentService) runVerification(ctx context.Context, documentID string, correction *models.DocumentType) (*models.VerificationOutcome, *models.Document, error) {
	release, ok, err := s.locks.TryLock(ctx, "verify:"+documentID)
	if err != nil {
		return nil, nil, s.classify(ctx, "acquire verification lock", err, "document_id", documentID)
	}
	if !ok {
		s.metrics.ObserveVerification(metrics.OutcomeBusy)
		return nil, nil, common.ErrorVerificationInProgress
	}
	defer release()

	// Re-read under the lock; another attempt may have finished meanwhile.
	doc, err := s.repomanager.Documents(s.db).GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, s.classify(ctx, "load document", err, "document_id", documentID)
	}

	if doc.Status == models.StatusVerified {
		outcome, err := s.checkIntegrity(ctx, doc)
		if err != nil {
			return nil, nil, err
		}
		return outcome, doc, nil
	}

	if correction != nil {
		doc.DeclaredType = *correction
	}

	content, err := s.store.Get(ctx, doc.ContentRef)
	if err != nil {
		return nil, nil, s.classify(ctx, "read document content", err, "document_id", doc.ID)
	}
	if Digest(content) != doc.ContentDigest {
		s.log.Error(ctx, "stored content does not match digest", "document_id", doc.ID)
		return nil, nil, fmt.Errorf("%w: stored content does not match its digest", common.ErrorStorage)
	}

	c, err := s.consultOracle(ctx, doc, content)
	if err != nil {
		return nil, nil, err
	}

	upd := documents.VerificationUpdate{
		ConfidenceScore: &c.Confidence,
		DetectedType:    &c.DetectedType,
		DeclaredType:    correction,
	}
	outcome := &models.VerificationOutcome{Confidence: &c.Confidence, DetectedType: &c.DetectedType}

	sameType := models.SameType(doc.DeclaredType, c.DetectedType)
	if sameType && c.Confidence >= s.opts.ConfidenceThreshold {
		hash, err := s.attest(ctx, doc)
		if err != nil {
			return nil, nil, err
		}
		upd.Status = models.StatusVerified
		upd.AttestationHash = &hash
		outcome.Verified = true
		outcome.Message = fmt.Sprintf("Document verified as %s with %.0f%% confidence", c.DetectedType, c.Confidence*100)
	} else {
		upd.Status = models.StatusFailed
		if !sameType {
			outcome.Message = fmt.Sprintf("Document type mismatch! You selected '%s' but the document appears to be a '%s' (%.0f%% confidence). %s",
				doc.DeclaredType, c.DetectedType, c.Confidence*100, c.Reason)
		} else {
			outcome.Message = fmt.Sprintf("Low confidence (%.0f%%). %s Please upload a clearer document.", c.Confidence*100, c.Reason)
		}
	}
	outcome.Status = upd.Status

	// Work the caller abandoned must not change the document.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if err := s.repomanager.Documents(s.db).UpdateVerification(ctx, doc.ID, upd); err != nil {
		return nil, nil, s.classify(ctx, "record verification", err, "document_id", doc.ID)
	}

	doc.Status = upd.Status
	doc.ConfidenceScore = upd.ConfidenceScore
	doc.DetectedType = upd.DetectedType
	doc.AttestationHash = upd.AttestationHash

	if outcome.Verified {
		s.metrics.ObserveVerification(metrics.OutcomeVerified)
	} else {
		s.metrics.ObserveVerification(metrics.OutcomeFailed)
	}
	s.log.Info(ctx, "document verification finished", "document_id", doc.ID, "status", doc.Status, "confidence", c.Confidence)

	return outcome, doc, nil
}

func (s *DocumentService) consultOracle(ctx context.Context, doc *models.Document, content []byte) (models.Classification, error) {
	octx, cancel := context.WithTimeout(ctx, s.opts.OracleTimeout)
	defer cancel()

	start := time.Now()
	c, err := s.oracle.Classify(octx, oracle.Request{Content: content, Filename: doc.Filename, DeclaredType: doc.DeclaredType})
	s.metrics.ObserveOracle(time.Since(start))
	if err != nil {
		return models.Classification{}, s.collaboratorError(ctx, octx, "oracle", doc.ID, err)
	}
	if err := ctx.Err(); err != nil {
		return models.Classification{}, err
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		s.metrics.ObserveVerification(metrics.OutcomeError)
		return models.Classification{}, fmt.Errorf("%w: oracle returned confidence %v outside [0,1]", common.ErrorVerification, c.Confidence)
	}
	return c, nil
}

func (s *DocumentService) attest(ctx context.Context, doc *models.Document) (string, error) {
	actx, cancel := context.WithTimeout(ctx, s.opts.AttestationTimeout)
	defer cancel()

	hash, err := s.attester.Attest(actx, doc.ContentDigest, doc.OwnerID)
	if err != nil {
		return "", s.collaboratorError(ctx, actx, "attestation", doc.ID, err)
	}
	if hash == "" {
		s.metrics.ObserveVerification(metrics.OutcomeError)
		return "", fmt.Errorf("%w: attestation service returned an empty hash", common.ErrorVerification)
	}
	return hash, nil
}

// collaboratorError maps a failed oracle or ledger call. A caller that went
// away gets its own context error back; a call that ran past its own
// deadline is a retryable timeout.
func (s *DocumentService) collaboratorError(ctx, callCtx context.Context, what, documentID string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		s.metrics.ObserveVerification(metrics.OutcomeTimeout)
		s.log.Warn(ctx, what+" timed out", "document_id", documentID)
		return fmt.Errorf("%w: %s did not answer in time, please retry", common.ErrorVerificationTimeout, what)
	}
	s.metrics.ObserveVerification(metrics.OutcomeError)
	s.log.Error(ctx, what+" call failed", "document_id", documentID, "error", err)
	return fmt.Errorf("%w: %s unavailable, please retry", common.ErrorVerification, what)
}

// checkIntegrity recomputes the digest of the stored bytes and asks the
// ledger whether the existing attestation still covers it.
func (s *DocumentService) checkIntegrity(ctx context.Context, doc *models.Document) (*models.VerificationOutcome, error) {
	if doc.AttestationHash == nil || *doc.AttestationHash == "" {
		s.log.Error(ctx, "verified document without attestation", "document_id", doc.ID)
		return nil, common.ErrorInternal
	}

	content, err := s.store.Get(ctx, doc.ContentRef)
	if err != nil {
		return nil, s.classify(ctx, "read document content", err, "document_id", doc.ID)
	}
	digest := Digest(content)

	actx, cancel := context.WithTimeout(ctx, s.opts.AttestationTimeout)
	defer cancel()

	valid, err := s.attester.Verify(actx, *doc.AttestationHash, digest)
	if err != nil {
		return nil, s.collaboratorError(ctx, actx, "attestation", doc.ID, err)
	}

	intact := valid && digest == doc.ContentDigest
	outcome := &models.VerificationOutcome{
		Verified:     intact,
		Status:       doc.Status,
		Confidence:   doc.ConfidenceScore,
		DetectedType: doc.DetectedType,
		Intact:       &intact,
	}
	if intact {
		s.metrics.ObserveVerification(metrics.OutcomeIntegrityOK)
		outcome.Message = "Document already verified; content matches its attestation"
	} else {
		s.metrics.ObserveVerification(metrics.OutcomeIntegrityBroken)
		s.log.Warn(ctx, "attested document no longer matches", "document_id", doc.ID)
		outcome.Message = "Document content no longer matches its attestation"
	}
	return outcome, nil
}

// pendingOutcome reports a verification that could not finish during upload.
func pendingOutcome(err error) models.VerificationOutcome {
	msg := "Verification could not be completed, please retry"
	switch {
	case errors.Is(err, common.ErrorVerificationInProgress):
		msg = "Verification already in progress"
	case errors.Is(err, common.ErrorVerification):
		msg = err.Error()
	}
	return models.VerificationOutcome{Verified: false, Status: models.StatusPending, Message: msg}
}
