// SPDX-License-Identifier: MPL-2.0

// Package hook dispatches extension points to registered plugins.
//
// A plugin is any value with a Name. It takes part in an extension point by
// implementing the matching capability interface (OptionContributor,
// KindRegistrar, AfterRunObserver, ...). The registry checks those interfaces
// at dispatch time, in registration order.
//
// Broadcast points call every implementer. First-result points stop at the
// first plugin that answers. Registration happens during single-threaded
// setup; Freeze makes the plugin list immutable before execution starts.
package hook
