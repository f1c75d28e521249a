package httpapi

import (
	"github.com/gorilla/mux"
)

// newRouter wires every §6 endpoint onto a fresh mux.Router.
func (s *Server) newRouter() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/api/info", s.handleInfo).Methods("GET")
	router.HandleFunc("/api/adapters", s.handleListAdapters).Methods("GET")
	router.HandleFunc("/api/set-adapter", s.handleSetAdapter).Methods("POST")
	router.HandleFunc("/api/restart", s.handleRestart).Methods("POST")

	router.HandleFunc("/api/devices", s.handleListDevices).Methods("GET")
	router.HandleFunc("/api/devices/{address}/settings", s.handleUpdateDeviceSettings).Methods("PUT")

	router.HandleFunc("/api/scan", s.handleScan).Methods("POST")
	router.HandleFunc("/api/scan/status", s.handleScanStatus).Methods("GET")

	router.HandleFunc("/api/pair", s.handlePair).Methods("POST")
	router.HandleFunc("/api/connect", s.handleConnect).Methods("POST")
	router.HandleFunc("/api/disconnect", s.handleDisconnect).Methods("POST")
	router.HandleFunc("/api/force-reconnect", s.handleForceReconnect).Methods("POST")
	router.HandleFunc("/api/forget", s.handleForget).Methods("POST")

	router.HandleFunc("/api/settings", s.handleGetSettings).Methods("GET")
	router.HandleFunc("/api/settings", s.handlePutSettings).Methods("PUT")

	router.HandleFunc("/api/audio/sinks", s.handleAudioSinks).Methods("GET")
	router.HandleFunc("/api/state", s.handleState).Methods("GET")
	router.HandleFunc("/api/logs", s.handleLogs).Methods("GET")

	router.HandleFunc("/api/ws", s.handleWS).Methods("GET")

	return router
}
