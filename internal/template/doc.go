// Package template expands {{ variable }} placeholders in package
// descriptor values, such as "{{ root }}/bin" in an environment block.
package template
