package connect

// ServiceName is the fully-qualified name of the panel service.
const ServiceName = "vlcpanel.v1.PanelService"

// Procedure paths of the panel service.
const (
	GetStatusProcedure    = "/" + ServiceName + "/GetStatus"
	SendCommandProcedure  = "/" + ServiceName + "/SendCommand"
	SwitchQueueProcedure  = "/" + ServiceName + "/SwitchQueue"
	LockWidgetProcedure   = "/" + ServiceName + "/LockWidget"
	UnlockWidgetProcedure = "/" + ServiceName + "/UnlockWidget"
	BrowseProcedure       = "/" + ServiceName + "/Browse"
	GetPlaylistProcedure  = "/" + ServiceName + "/GetPlaylist"
	ClearErrorsProcedure  = "/" + ServiceName + "/ClearErrors"
	WatchPanelProcedure   = "/" + ServiceName + "/WatchPanel"
)
