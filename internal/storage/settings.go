package storage

// GetSetting returns the raw string value for key, or ("", false) if unset.
func (s *Store) GetSetting(key string) (string, bool) {
	var row AppSetting
	if err := s.db.First(&row, "key = ?", key).Error; err != nil {
		return "", false
	}
	return row.Value, true
}

// SetSetting upserts a single key/value pair.
func (s *Store) SetSetting(key, value string) error {
	return s.db.Save(&AppSetting{Key: key, Value: value}).Error
}

// DeleteSetting removes a key, used by FactoryReset-style operations.
func (s *Store) DeleteSetting(key string) error {
	return s.db.Delete(&AppSetting{}, "key = ?", key).Error
}

// ListSettingsByPrefix returns every setting whose key starts with
// prefix, used to enumerate per-provider or per-language keys
// (e.g. "provider.enabled." or "detect.sources.node").
func (s *Store) ListSettingsByPrefix(prefix string) (map[string]string, error) {
	var rows []AppSetting
	if err := s.db.Where("key LIKE ?", prefix+"%").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// SaveInstalledVersion upserts an installed-version record for one
// (env_type, provider_id, version) triple.
func (s *Store) SaveInstalledVersion(rec *InstalledVersionRecord) error {
	var existing InstalledVersionRecord
	err := s.db.Where("env_type = ? AND provider_id = ? AND version = ?", rec.EnvType, rec.ProviderID, rec.Version).
		First(&existing).Error
	if err == nil {
		rec.ID = existing.ID
	}
	return s.db.Save(rec).Error
}

// InstalledVersions returns every recorded version for one env type.
func (s *Store) InstalledVersions(envType string) ([]*InstalledVersionRecord, error) {
	var recs []*InstalledVersionRecord
	err := s.db.Where("env_type = ?", envType).Find(&recs).Error
	return recs, err
}

// DeleteInstalledVersion removes the record for one (env_type,
// provider_id, version) triple.
func (s *Store) DeleteInstalledVersion(envType, providerID, version string) error {
	return s.db.Delete(&InstalledVersionRecord{},
		"env_type = ? AND provider_id = ? AND version = ?", envType, providerID, version).Error
}
