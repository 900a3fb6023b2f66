package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Announce the KISS over TCP service using DNS-SD
 *
 * Description:
 *
 *     Most people have typed in enough IP addresses and ports by now, and
 *     would rather just select an available TNC that is automatically
 *     discovered on the local network.
 *
 *     This uses the pure-Go github.com/brutella/dnssd package, so no
 *     system daemon is needed.
 */

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const DNS_SD_SERVICE = "_kiss-tnc._tcp"

// DNSSDDefaultName is "MFSK on <hostname>", or just "MFSK".
func DNSSDDefaultName() string {
	var hostname, hostnameErr = os.Hostname()
	if hostnameErr != nil || hostname == "" {
		return "MFSK"
	}

	// on some systems, an FQDN is returned; remove domain part
	hostname, _, _ = strings.Cut(hostname, ".")

	return "MFSK on " + hostname
}

/*-------------------------------------------------------------------
 *
 * Name:        DNSSDAnnounce
 *
 * Purpose:     Answer mDNS queries for our KISS TCP port until ctx
 *		is done.
 *
 * Inputs:	name	- Service name.  Empty for the default.
 *
 *		port	- The KISS TCP port.
 *
 *--------------------------------------------------------------------*/

func DNSSDAnnounce(ctx context.Context, name string, port int, logger *log.Logger) error {
	if name == "" {
		name = DNSSDDefaultName()
	}

	var cfg = dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: DNS_SD_SERVICE,
		Port: port,
	}

	var sv, svErr = dnssd.NewService(cfg)
	if svErr != nil {
		return fmt.Errorf("DNS-SD: failed to create service: %w", svErr)
	}

	var rp, rpErr = dnssd.NewResponder()
	if rpErr != nil {
		return fmt.Errorf("DNS-SD: failed to create responder: %w", rpErr)
	}

	if _, addErr := rp.Add(sv); addErr != nil {
		return fmt.Errorf("DNS-SD: failed to add service: %w", addErr)
	}

	logger.Info("DNS-SD: Announcing KISS TCP", "port", port, "name", name)

	if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("DNS-SD: responder: %w", err)
	}

	return nil
}
