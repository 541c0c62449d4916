package services

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/flujo/pkg/mocks"
	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/persistence"
	"github.com/dukex/flujo/pkg/persistence/file"
	"github.com/dukex/flujo/pkg/testutil"
	"github.com/dukex/flujo/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

var testNow = time.Date(2024, time.April, 19, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	clock       *clocktesting.FakeClock
	tokenClock  *clocktesting.FakeClock
	persistence persistence.Persistence
	objects     *mocks.MockObjectStore
	codec       *token.Codec
	flujos      *Flujo
	completion  *Completion
}

// newTestEnv wires the services over a file store in a temp dir. The token
// codec runs on its own clock so tests can age a flujo without expiring the
// respondent's token; advance moves both.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	return buildTestEnv(t, clocktesting.NewFakeClock(testNow), clocktesting.NewFakeClock(testNow))
}

// newSharedClockTestEnv is newTestEnv with the services and the token codec
// reading one clock, as they do in the running binary.
func newSharedClockTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := clocktesting.NewFakeClock(testNow)

	return buildTestEnv(t, clock, clock)
}

func buildTestEnv(t *testing.T, clock, tokenClock *clocktesting.FakeClock) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:       clock,
		tokenClock:  tokenClock,
		persistence: file.NewPersistence(t.TempDir()),
		objects:     &mocks.MockObjectStore{},
	}

	codec, err := token.NewCodec("test-secret", token.WithClock(env.tokenClock))
	require.NoError(t, err)

	env.codec = codec
	env.flujos = NewFlujo(env.persistence, env.objects, codec,
		WithClock(env.clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	env.completion = NewCompletion(env.flujos)

	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.clock.Step(d)

	if env.tokenClock != env.clock {
		env.tokenClock.Step(d)
	}
}

func (env *testEnv) save(t *testing.T, flujo *models.Flujo) *models.Flujo {
	t.Helper()

	require.NoError(t, env.persistence.FlujoRepository().Save(t.Context(), flujo))

	return flujo
}

func (env *testEnv) stored(t *testing.T, id string) *models.Flujo {
	t.Helper()

	flujo, err := env.persistence.FlujoRepository().GetByID(t.Context(), id)
	require.NoError(t, err)
	require.NotNil(t, flujo)

	return flujo
}

// tokenFor signs a token for the flujo without going through Start.
func (env *testEnv) tokenFor(t *testing.T, flujoID string) string {
	t.Helper()

	tok, err := env.codec.Sign(token.Payload{FlujoID: flujoID}, int64((2 * time.Hour).Seconds()))
	require.NoError(t, err)

	return tok
}

// started saves a CREATED flujo, starts it and returns it with its token.
func (env *testEnv) started(t *testing.T, overrides ...func(*models.Flujo)) (*models.Flujo, string) {
	t.Helper()

	flujo := env.save(t, testutil.CreateTestFlujo(overrides...))

	result, err := env.flujos.Start(t.Context(), flujo.ID, flujo.Passcode)
	require.NoError(t, err)

	return result.Flujo, result.Token
}

func assertServiceError(t *testing.T, err error, class error, code string) {
	t.Helper()

	require.Error(t, err)
	assert.ErrorIs(t, err, class)
	assert.Equal(t, code, ErrorCode(err))
}
