/*
Package builder drives one generation run over a set of descriptor types.

A run has three phases, each ending in a barrier (Executor.Wait):

 1. Build: every requested descriptor type is instantiated through its
    factory, its target possibilities are expanded, it is configured once per
    target and its configurations are resolved. The types its configurations
    depend on are scheduled in turn, so the work graph grows while the phase
    runs. Solutions are scheduled at high priority, projects at low priority.

 2. Link: the dependency graph between types is checked for cycles. Each
    configuration then gets the flattened, transitive set of configurations it
    depends on. A type reached with two different targets, or a target the
    dependency does not produce, is a configuration error. Linking is
    idempotent.

 3. Generate: configurations reachable from the requested types are grouped
    by project file path and handed to the Generator, one task per group.
    Configurations nobody uses are reported, not generated.

Every descriptor type moves through the State lifecycle. Configuration errors
fail the descriptor they belong to and, through linking, its dependents; the
rest of the run carries on and the errors end up in the Report. Internal
errors, including illegal state transitions and panicking tasks, are fatal:
the first one is kept and returned by Run.
*/
package builder
