package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Xine003/ResQWave-sub002/config"
	"github.com/Xine003/ResQWave-sub002/services"
	"github.com/Xine003/ResQWave-sub002/services/container"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestContainer(t *testing.T) (*container.ServiceContainer, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Unreachable broker port; the uplink bridge logs its failed connect and
	// the rest of the container comes up regardless.
	cfg := &config.Config{
		MQTTBrokerURL: "tcp://127.0.0.1:1",
		MQTTClientID:  "coordinator-test",
		RedisHost:     "127.0.0.1",
		RedisPort:     "6379",
	}
	return container.NewServiceContainer(db, cfg), mock
}

// TestServeTerminalRejectsUnknownTerminal checks an unvalidated terminalId
// query parameter cannot become a room: a nonexistent terminal is turned
// away before the upgrade, with no presence side effects.
func TestServeTerminalRejectsUnknownTerminal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serviceContainer, mock := newTestContainer(t)
	mock.ExpectQuery("SELECT (.+) FROM `terminals` WHERE id = \\?").
		WithArgs("RESQ999").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	r := gin.New()
	r.GET("/ws/terminal", HandleWSFunc(serviceContainer, "terminal"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws/terminal?terminalId=RESQ999", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())

	router := serviceContainer.GetService("event_router").(services.InterfaceEventRouterService)
	require.False(t, router.Registry().IsOnline("RESQ999"))
}
