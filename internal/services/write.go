package services

import "gorm.io/gorm"

// applyVersionedUpdate writes cols to the row identified by model's primary
// key, conditional on the etag observed when the row was loaded in this
// transaction. A writer that committed in between changes the stored etag,
// the predicate matches zero rows, and the caller's transaction rolls back
// with ErrEtagMismatch instead of overwriting the newer revision.
func applyVersionedUpdate(tx *gorm.DB, model any, readEtag string, cols map[string]any) error {
	res := tx.Model(model).Where("etag = ?", readEtag).UpdateColumns(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEtagMismatch
	}
	return nil
}
