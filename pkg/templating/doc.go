/*
Package templating renders custom field values and inline templates against a
fields.Source.

A render request names a field path, the context it is resolved in (a post, a
term, a user, the options page or a comment) and optionally a template body.
Without a body the resolved value is rendered directly, as text or as media
markup selected by the "as" attribute. With a body, the template is rendered
once per row when the value is a list and once otherwise.

The template language has four constructs:

	{@path|pipe|pipe:arg}            token with output pipes
	{@name_count}                    number of rows of a group field
	{@each path}...{@/each}          loop over a list resolved in the render context
	{@if expr}...{@elseif expr}...{@else}...{@/if}

Templates are parsed into a tree once and then evaluated with an explicit
scope chain: a token looks up its first segment in the innermost loop row, then
in each enclosing row, and finally resolves it against the render context.
Markers that cannot be placed in the tree are kept as literal text and
reported as Diagnostics.

Rendering never fails. Anything that cannot be resolved renders as the empty
string.
*/
package templating
