// Package tunnel makes a remote container engine usable from the local
// machine over SSH.
//
// Open forwards a local unix socket to the engine socket on the remote
// host and, while it runs, publishes the ports of managed containers on
// the local loopback. Local engine commands then work unchanged with
// DOCKER_HOST pointing at the forwarded socket.
package tunnel
