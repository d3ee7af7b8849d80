// Package backgroundview runs an external client, a video player by
// default, as the desktop background of an output.
//
// The client gets a pre-connected socket through WAYLAND_SOCKET. The
// compositor end is handed to a [ClientAcceptor], and the first view mapped
// by that client is stretched over the output in the background layer and
// shown on every workspace. The plugin is only available on unix systems.
package backgroundview
