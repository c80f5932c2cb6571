package state

import (
	"fmt"
	"net/netip"
	"regexp"
	"slices"

	"github.com/encodeous/sift/objects"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func BindValidator(s string) error {
	_, err := netip.ParseAddrPort(s)
	return err
}

func NodeConfigValidator(node *NodeCfg) error {
	err := NameValidator(string(node.Id))
	if err != nil {
		return err
	}
	if node.Bind != "" {
		if err := BindValidator(node.Bind); err != nil {
			return fmt.Errorf("node.Bind is invalid: %w", err)
		}
	}
	if node.Capacity < 0 {
		return fmt.Errorf("node.Capacity must not be negative")
	}
	return nil
}

func NetworkConfigValidator(cfg *NetworkCfg) error {
	seen := make([]string, 0)
	allNodes := make([]string, 0)
	for _, node := range cfg.Nodes {
		err := NameValidator(string(node.Id))
		if err != nil {
			return err
		}
		if slices.Contains(seen, string(node.Id)) {
			return fmt.Errorf("duplicate node %s", node.Id)
		}
		if !node.Endpoint.IsValid() {
			return fmt.Errorf("node %s endpoint is invalid", node.Id)
		}
		seen = append(seen, string(node.Id))
		allNodes = append(allNodes, string(node.Id))
	}
	if cfg.Metric != "" {
		if _, err := objects.ParseMetric(cfg.Metric); err != nil {
			return err
		}
	}
	_, err := ParseGraph(cfg.Graph, allNodes)
	if err != nil {
		return err
	}
	return nil
}
