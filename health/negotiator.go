package health

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/tnicklin/vigia/logger"
)

// ErrNoAvailablePort is returned when every candidate port is taken.
var ErrNoAvailablePort = errors.New("could not find an available port for web server")

// fallbackPorts are tried after the preferred port and its two neighbours.
var fallbackPorts = []int{8000, 8080, 3000}

// ListenFunc matches net.Listen.
type ListenFunc func(network, address string) (net.Listener, error)

// Candidates returns the ordered ports to try for preferred, without
// duplicates.
func Candidates(preferred int) []int {
	ordered := append([]int{preferred, preferred + 1, preferred + 2}, fallbackPorts...)
	seen := make(map[int]struct{}, len(ordered))
	out := make([]int, 0, len(ordered))
	for _, p := range ordered {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Negotiator binds the first free port from a candidate list.
type Negotiator struct {
	host   string
	listen ListenFunc
	logger logger.Logger
}

type NegotiatorParams struct {
	Host   string
	Listen ListenFunc
	Logger logger.Logger
}

func NewNegotiator(p NegotiatorParams) *Negotiator {
	listen := p.Listen
	if listen == nil {
		listen = net.Listen
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Negotiator{host: p.Host, listen: listen, logger: log}
}

// Bind tries candidates in order. A port that is already in use is
// skipped; any other bind error stops negotiation and is returned.
func (n *Negotiator) Bind(candidates []int) (net.Listener, int, error) {
	for _, port := range candidates {
		addr := net.JoinHostPort(n.host, strconv.Itoa(port))
		ln, err := n.listen("tcp", addr)
		if err == nil {
			return ln, port, nil
		}
		if !isAddrInUse(err) {
			return nil, 0, fmt.Errorf("bind %s: %w", addr, err)
		}
		n.logger.WarnW("port already in use, trying next port", "port", port)
	}

	n.logger.ErrorW("could not find an available port for web server", "candidates", candidates)
	return nil, 0, ErrNoAvailablePort
}

func isAddrInUse(err error) bool {
	if errors.Is(err, syscall.EADDRINUSE) {
		return true
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return sysErr.Err == syscall.EADDRINUSE
	}
	return strings.Contains(err.Error(), "address already in use")
}
