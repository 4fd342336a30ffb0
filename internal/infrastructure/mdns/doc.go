// Package mdns advertises the bridge API on the local network with DNS-SD.
//
// Dashboards and scripts can browse for _graylogic-onewire._tcp instead of
// being configured with an address. The TXT records carry the API base path,
// the WebSocket path, the Home Assistant node ID and whether a bearer token is
// required. Advertisement is optional: when disabled in config, Advertise
// returns ErrDisabled.
//
//	adv, err := mdns.Advertise(cfg.API.MDNS, mdns.Info{
//	    Instance: cfg.Site.Name, Port: cfg.API.Port, NodeID: cfg.HomeAssistant.NodeID,
//	})
//	if err == nil {
//	    defer adv.Shutdown()
//	}
package mdns
