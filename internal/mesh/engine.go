// Package mesh is the gossip mesh engine: it owns the libp2p host,
// the single gossipsub topic every node publishes to and subscribes on,
// mDNS peer discovery, and the cooperative single-threaded select loop
// that services stdin, inbound gossip, the command/event bridge, and
// shutdown. Blocking one-call-at-a-time APIs (Subscription.Next,
// bufio.Scanner) don't compose directly inside a select, so each
// blocking source gets its own forwarding goroutine and channel.
package mesh

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"
	"golang.org/x/time/rate"

	"github.com/gridspeak/node/pkg/bus"
	"github.com/gridspeak/node/pkg/channels"
	"github.com/gridspeak/node/pkg/chatmodel"
	"github.com/gridspeak/node/pkg/envelope"
	"github.com/gridspeak/node/pkg/logger"
	"github.com/gridspeak/node/pkg/telemetry"
	"github.com/gridspeak/node/pkg/voicering"
)

const protocolVersion = "/gridspeak/0.1.0"

// bootstrapDialInterval rate-limits bootstrap dial attempts so a long,
// partially-unreachable bootstrap list can't hammer the network stack.
const bootstrapDialInterval = 250 * time.Millisecond

// Engine owns every live mesh collaborator: the libp2p host, the shared
// gossip topic, and the application state it publishes into and ingests
// from.
type Engine struct {
	host     host.Host
	topic    *pubsub.Topic
	sub      *pubsub.Subscription
	mdns     mdns.Service
	identify event.Subscription

	directory *channels.Directory
	telemetry *telemetry.Telemetry
	voice     *voicering.Ring
	bridge    *bus.Bridge
	nickname  string
}

// Config bundles what New needs to stand up the host and topic; it is
// deliberately narrower than config.Config so this package doesn't
// depend on the config loader.
type Config struct {
	ListenAddr     string
	TopicName      string
	BootstrapNodes []string
	Nickname       string
}

// New constructs the libp2p host (TCP transport, Noise security, Yamux
// muxing), joins the gossip topic with message signing enabled, starts
// mDNS discovery, and dials any configured bootstrap nodes.
func New(ctx context.Context, priv crypto.PrivKey, cfg Config, directory *channels.Directory, tel *telemetry.Telemetry, voice *voicering.Ring, bridge *bus.Bridge) (*Engine, error) {
	h, err := newHost(priv, cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("mesh: build host: %w", err)
	}

	gossipParams := pubsub.DefaultGossipSubParams()
	gossipParams.HeartbeatInterval = time.Second

	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageSignaturePolicy(pubsub.StrictSign),
		pubsub.WithGossipSubParams(gossipParams),
	)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("mesh: build gossipsub: %w", err)
	}

	topicName := cfg.TopicName
	topic, err := ps.Join(topicName)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("mesh: join topic %q: %w", topicName, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("mesh: subscribe topic %q: %w", topicName, err)
	}

	e := &Engine{
		host:      h,
		topic:     topic,
		sub:       sub,
		directory: directory,
		telemetry: tel,
		voice:     voice,
		bridge:    bridge,
		nickname:  cfg.Nickname,
	}

	notifee := &discoveryNotifee{host: h, telemetry: tel}
	svc := mdns.NewMdnsService(h, protocolVersion, notifee)
	if err := svc.Start(); err != nil {
		h.Close()
		return nil, fmt.Errorf("mesh: start mdns: %w", err)
	}
	e.mdns = svc

	h.Network().Notify(&network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			tel.NotePeerOnline(c.RemotePeer().String())
		},
		DisconnectedF: func(_ network.Network, c network.Conn) {
			tel.NotePeerOffline(c.RemotePeer().String())
		},
	})

	dialBootstrapNodes(h, cfg.BootstrapNodes)

	// The identify protocol is used only for logging the remote version
	// string; go-libp2p's libp2p.New wires identify in automatically, so
	// this just listens for its completion events.
	if idSub, err := h.EventBus().Subscribe(new(event.EvtPeerIdentificationCompleted)); err == nil {
		e.identify = idSub
		go logIdentifyEvents(idSub)
	} else {
		logger.WarnCF("mesh", "failed to subscribe to identify events", map[string]any{"error": err.Error()})
	}

	logger.InfoCF("mesh", "node identity loaded", map[string]any{
		"peer_id": h.ID().String(),
	})
	for _, addr := range h.Addrs() {
		logger.InfoCF("mesh", "listening", map[string]any{
			"address": addr.String(),
		})
	}

	return e, nil
}

func dialBootstrapNodes(h host.Host, nodes []string) {
	limiter := rate.NewLimiter(rate.Every(bootstrapDialInterval), 1)
	for _, raw := range nodes {
		_ = limiter.Wait(context.Background())

		addr, err := multiaddr.NewMultiaddr(raw)
		if err != nil {
			logger.WarnCF("mesh", "invalid bootstrap address", map[string]any{"address": raw, "error": err.Error()})
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			logger.WarnCF("mesh", "bootstrap address missing peer id", map[string]any{"address": raw, "error": err.Error()})
			continue
		}
		go func(info peer.AddrInfo) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := h.Connect(ctx, info); err != nil {
				logger.WarnCF("mesh", "failed to dial bootstrap node", map[string]any{"peer": info.ID.String(), "error": err.Error()})
			}
		}(*info)
	}
}

// PeerID returns the node's stable libp2p identifier.
func (e *Engine) PeerID() peer.ID {
	return e.host.ID()
}

// Host exposes the underlying libp2p host for collaborators (the API
// surface reports PeerID only, so this is mainly for tests).
func (e *Engine) Host() host.Host {
	return e.host
}

// Close tears down discovery, the subscription, and the host.
func (e *Engine) Close() error {
	e.sub.Cancel()
	if e.mdns != nil {
		_ = e.mdns.Close()
	}
	if e.identify != nil {
		_ = e.identify.Close()
	}
	return e.host.Close()
}

// logIdentifyEvents drains the identify event subscription, logging each
// remote peer's advertised version string. It never feeds the main
// select loop.
func logIdentifyEvents(sub event.Subscription) {
	for raw := range sub.Out() {
		evt, ok := raw.(event.EvtPeerIdentificationCompleted)
		if !ok {
			continue
		}
		logger.InfoCF("mesh", "peer identified", map[string]any{
			"peer":             evt.Peer.String(),
			"agent_version":    evt.AgentVersion,
			"protocol_version": evt.ProtocolVersion,
		})
	}
}

// Run drives the main select loop until ctx is cancelled: a line of
// local stdin input publishes to the root channel, an inbound gossip
// message is decoded and dispatched, a bridge command or voice signal is
// encoded and published, and context cancellation ends the loop cleanly.
func (e *Engine) Run(ctx context.Context) error {
	stdinCh := make(chan string, 16)
	go readStdin(ctx, stdinCh)

	gossipCh := make(chan *pubsub.Message, 32)
	go e.readGossip(ctx, gossipCh)

	// A nil channel never fires in a select, so a closed source is
	// disabled by nil-ing its local while the rest of the loop stays
	// alive.
	voiceCh := e.bridge.Voice()
	commandCh := e.bridge.Commands()

	for {
		select {
		case <-ctx.Done():
			logger.InfoC("mesh", "shutdown requested")
			return nil

		case line, ok := <-stdinCh:
			if !ok {
				stdinCh = nil
				logger.InfoC("mesh", "stdin closed; node continues (API and P2P active)")
				continue
			}
			if err := e.publishLine(ctx, line); err != nil {
				logger.WarnCF("mesh", "failed to send message", map[string]any{"error": err.Error()})
			}

		case msg, ok := <-gossipCh:
			if !ok {
				logger.WarnC("mesh", "gossip subscription closed")
				return fmt.Errorf("mesh: subscription closed")
			}
			e.handleGossipMessage(msg)

		case sig, ok := <-voiceCh:
			if !ok {
				voiceCh = nil
				logger.WarnC("mesh", "voice queue closed; source disabled")
				continue
			}
			if err := e.publishVoiceSignal(ctx, sig); err != nil {
				logger.WarnCF("mesh", "failed to publish voice signal", map[string]any{"error": err.Error()})
			}

		case cmd, ok := <-commandCh:
			if !ok {
				commandCh = nil
				logger.WarnC("mesh", "command queue closed; source disabled")
				continue
			}
			e.handleCommand(ctx, cmd)
		}
	}
}

func readStdin(ctx context.Context, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case out <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) readGossip(ctx context.Context, out chan<- *pubsub.Message) {
	defer close(out)
	for {
		msg, err := e.sub.Next(ctx)
		if err != nil {
			return
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) handleGossipMessage(msg *pubsub.Message) {
	if msg.ReceivedFrom == e.host.ID() {
		return
	}

	env := envelope.Decode(msg.Data)
	switch env.Kind {
	case envelope.KindVoiceSignal:
		if env.Voice.From == e.host.ID().String() {
			return
		}
		e.voice.Push(env.Voice)

	case envelope.KindChannelList:
		e.directory.MergeRemote(env.ChannelList)

	case envelope.KindChannelRemoved:
		e.directory.RemoveRemote(env.ChannelRemoved)

	case envelope.KindChatMessage:
		if err := e.directory.Append(env.ChatChannel, env.ChatMessage); err != nil {
			logger.WarnCF("mesh", "unable to persist message", map[string]any{"error": err.Error()})
			return
		}
		e.telemetry.NoteMessage(env.ChatMessage.Timestamp.Format(time.RFC3339))
		fmt.Printf("[%s] %s :: %s\n", env.ChatChannel, env.ChatMessage.Author, env.ChatMessage.Body)
		logger.DebugCF("mesh", "message received", map[string]any{
			"channel": env.ChatChannel,
			"from":    msg.ReceivedFrom.String(),
		})

	case envelope.KindUnknown:
		// dropped silently
	}
}

func (e *Engine) handleCommand(ctx context.Context, cmd bus.Command) {
	switch cmd.Kind {
	case bus.CommandSendMessage:
		if cmd.Message == nil {
			logger.WarnC("mesh", "send_message command missing a chat message payload")
			return
		}
		if err := e.publishChatMessage(ctx, cmd.Channel, *cmd.Message); err != nil {
			logger.WarnCF("mesh", "failed to relay api message", map[string]any{"error": err.Error()})
			return
		}
		logger.InfoCF("mesh", "api message relayed", map[string]any{"author": cmd.Message.Author, "channel": cmd.Channel})

	case bus.CommandBroadcastChannelList:
		if err := e.publishChannelList(ctx); err != nil {
			logger.WarnCF("mesh", "failed to broadcast channel list", map[string]any{"error": err.Error()})
		}

	case bus.CommandBroadcastChannelRemove:
		if err := e.publishChannelRemoved(ctx, cmd.Channel); err != nil {
			logger.WarnCF("mesh", "failed to broadcast channel removed", map[string]any{"error": err.Error()})
		}
	}
}

func (e *Engine) publishLine(ctx context.Context, line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	message := chatmodel.New(e.nickname, line)
	if err := e.publishChatMessage(ctx, channels.RootChannel, message); err != nil {
		return err
	}
	fmt.Printf("[%s] you :: %s\n", channels.RootChannel, message.Body)
	return nil
}

func (e *Engine) publishChatMessage(ctx context.Context, channel string, message chatmodel.ChatMessage) error {
	if err := e.directory.Append(channel, message); err != nil {
		return err
	}
	raw, err := envelope.EncodeChatMessage(channel, message)
	if err != nil {
		return err
	}
	if err := e.topic.Publish(ctx, raw); err != nil {
		return err
	}
	e.telemetry.NoteMessage(message.Timestamp.Format(time.RFC3339))
	return nil
}

func (e *Engine) publishChannelList(ctx context.Context) error {
	raw, err := envelope.EncodeChannelList(e.directory.List())
	if err != nil {
		return err
	}
	return e.topic.Publish(ctx, raw)
}

func (e *Engine) publishChannelRemoved(ctx context.Context, name string) error {
	raw, err := envelope.EncodeChannelRemoved(name)
	if err != nil {
		return err
	}
	return e.topic.Publish(ctx, raw)
}

func (e *Engine) publishVoiceSignal(ctx context.Context, sig bus.VoiceSignal) error {
	raw, err := envelope.EncodeVoiceSignal(sig)
	if err != nil {
		return err
	}
	return e.topic.Publish(ctx, raw)
}
