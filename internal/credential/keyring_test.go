package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/audit-mailer/internal/model"
)

func TestStore_SetGetDelete(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	require.NoError(t, s.Set(Key(KindSMTP, "ops"), "secret"))

	v, err := s.Get("smtp-ops")
	require.NoError(t, err)
	assert.Equal(t, "secret", v)

	require.NoError(t, s.Delete("smtp-ops"))
	_, err = s.Get("smtp-ops")
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)
}

func TestStore_FillPasswords(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring([]keyring.Item{
		{Key: "smtp-ops", Data: []byte("from-ring")},
		{Key: "imap-ops", Data: []byte("imap-ring")},
	}))

	tests := []struct {
		name     string
		cfg      model.AppConfig
		wantSMTP string
		wantIMAP string
	}{
		{
			name:     "fills empty passwords",
			cfg:      model.AppConfig{SMTP: model.SMTPConfig{Username: "ops"}, IMAP: model.IMAPConfig{Username: "ops"}},
			wantSMTP: "from-ring",
			wantIMAP: "imap-ring",
		},
		{
			name:     "keeps configured password",
			cfg:      model.AppConfig{SMTP: model.SMTPConfig{Username: "ops", Password: "cfg"}},
			wantSMTP: "cfg",
		},
		{
			name: "unknown user stays empty",
			cfg:  model.AppConfig{SMTP: model.SMTPConfig{Username: "nobody"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			require.NoError(t, s.FillPasswords(&cfg))
			assert.Equal(t, tt.wantSMTP, cfg.SMTP.Password)
			assert.Equal(t, tt.wantIMAP, cfg.IMAP.Password)
		})
	}
}
