package warp

import "net"

// Resolver picks exactly one IP address from a container's network
// attachments (§4.3).
type Resolver struct {
	networkPreferenceLabel string
}

func NewResolver(networkPreferenceLabel string) *Resolver {
	return &Resolver{networkPreferenceLabel: networkPreferenceLabel}
}

// ResolveIP selects the warp container's gateway IP per §4.3: the sole
// network if there is only one, otherwise the network named by the
// preference label.
func (r *Resolver) ResolveIP(container ContainerInfo) (net.IP, error) {
	return r.resolve(container, "")
}

// ResolveNamed bypasses label lookup and requires the network named
// explicitly by preferredNetwork, per §4.3 ("the same function also
// applies when the caller supplies an explicit preferred network
// name").
func (r *Resolver) ResolveNamed(container ContainerInfo, preferredNetwork string) (net.IP, error) {
	return r.resolve(container, preferredNetwork)
}

func (r *Resolver) resolve(container ContainerInfo, explicitPreference string) (net.IP, error) {
	switch len(container.Networks) {
	case 0:
		return nil, newResolveError(ErrNoNetwork, container.ID)
	case 1:
		return container.Networks[0].IPAddress, nil
	}

	pref := explicitPreference
	if pref == "" {
		v, ok := container.Label(r.networkPreferenceLabel)
		if !ok || v == "" {
			return nil, newResolveError(ErrNoPreference, container.ID)
		}
		pref = v
	}

	attachment, ok := container.NetworkByName(pref)
	if !ok {
		return nil, newResolveError(ErrPreferredNetworkMissing, container.ID)
	}
	return attachment.IPAddress, nil
}
