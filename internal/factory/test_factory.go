package factory

import (
	"time"

	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/mocks"
	"github.com/wjz20050714-stack/JIFEN/internal/storage/memory"
	"github.com/wjz20050714-stack/JIFEN/internal/testutil"
	"github.com/wjz20050714-stack/JIFEN/internal/web/ws"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock   *mocks.MockClock
	MockRandom  *mocks.MockRandom
	MockEmitter *mocks.MockEmitter
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Outbound events are recorded by MockEmitter instead of reaching websockets.
func NewTestApp() *TestApp {
	logger := testutil.NopLogger()
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	mockEmitter := mocks.NewMockEmitter()

	app := newWithDependencies(store, mockClock, mockRandom, ws.NewHub(logger), mockEmitter, Config{}, logger)

	return &TestApp{
		App:         app,
		MockClock:   mockClock,
		MockRandom:  mockRandom,
		MockEmitter: mockEmitter,
	}
}
