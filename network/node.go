package network

// NodeId uniquely identifies a sift node on the overlay. Node ids are
// assigned in the network config and are the only identity the protocol
// layer ever compares.
type NodeId string
