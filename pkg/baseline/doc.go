// Package baseline compares the live configuration-key space against a snapshot
// taken earlier, instead of against a hand-written manifest.
//
// Keys are dotted paths of the form "namespace.key", where the namespace is
// everything before the last dot (org.gnome.desktop.interface.gtk-theme has namespace
// org.gnome.desktop.interface). Keys can be excluded from the comparison with glob
// patterns over the whole path and with namespaces that are ignored entirely.
package baseline
