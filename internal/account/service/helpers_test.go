package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keyhavenhq/accountd/internal/account/mail"
	"github.com/keyhavenhq/accountd/internal/account/store"
	"github.com/keyhavenhq/accountd/internal/account/store/drivers/sqlite"
	"github.com/keyhavenhq/accountd/pkg/cryptox"
	"github.com/keyhavenhq/accountd/pkg/jwtx"
)

const testIssuer = "https://accounts.test"

type testEnv struct {
	store        store.Store
	hasher       *cryptox.Hasher
	keys         *jwtx.KeyManager
	mailer       *mail.TemplateMailer
	sent         *[]mail.Rendered
	registration *RegistrationService
	session      *SessionService
	accounts     *AccountService
	authorizer   *Authorizer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    testIssuer,
		NumKeys:   1,
	})
	require.NoError(t, err)

	var sent []mail.Rendered
	mailer := mail.NewTemplateMailer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	mailer.Sink = func(_ context.Context, msg mail.Rendered) error {
		sent = append(sent, msg)
		return nil
	}

	hasher := cryptox.NewHasher("")

	env := &testEnv{
		store:  st,
		hasher: hasher,
		keys:   keys,
		mailer: mailer,
		sent:   &sent,
		registration: &RegistrationService{
			Store:       st,
			Hasher:      hasher,
			Mailer:      mailer,
			ExternalURL: "https://accounts.test",
		},
		session: &SessionService{
			Store:  st,
			Hasher: hasher,
			Keys:   keys,
			Issuer: testIssuer,
		},
		accounts:   &AccountService{Store: st},
		authorizer: &Authorizer{Verifier: keys.Verifier},
	}
	return env
}

// registerConfirmed runs the full register + confirm flow for a fixture user.
func (e *testEnv) registerConfirmed(t *testing.T, email, password string, profile map[string]any) {
	t.Helper()
	ctx := context.Background()

	res, err := e.registration.Register(ctx, email, password, profile)
	require.NoError(t, err)
	_, err = e.registration.ConfirmRegister(ctx, email, res.Token)
	require.NoError(t, err)
}

// loginToken returns a fresh session token for a confirmed fixture user.
func (e *testEnv) loginToken(t *testing.T, email, password string) string {
	t.Helper()

	res, err := e.session.Login(context.Background(), email, password, nil)
	require.NoError(t, err)
	return res.Token
}
