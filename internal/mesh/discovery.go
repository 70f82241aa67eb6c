package mesh

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/gridspeak/node/pkg/logger"
	"github.com/gridspeak/node/pkg/telemetry"
)

// dialTimeout bounds the connection attempt made in response to each
// mDNS discovery notification.
const dialTimeout = 5 * time.Second

// discoveryNotifee reacts to locally-discovered peers by marking them
// online and dialing them. The mDNS service only notifies on discovery,
// not expiry, so peer "offline" telemetry is driven entirely by the
// host's network disconnect notifications wired in New.
type discoveryNotifee struct {
	host      host.Host
	telemetry *telemetry.Telemetry
}

// HandlePeerFound implements mdns.Notifee.
func (n *discoveryNotifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == n.host.ID() {
		return
	}

	logger.InfoCF("mesh", "mdns peer discovered", map[string]any{"peer": info.ID.String()})
	n.telemetry.NotePeerOnline(info.ID.String())
	n.host.Peerstore().AddAddrs(info.ID, info.Addrs, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := n.host.Connect(ctx, info); err != nil {
		logger.WarnCF("mesh", "failed to connect to discovered peer", map[string]any{
			"peer":  info.ID.String(),
			"error": err.Error(),
		})
	}
}
